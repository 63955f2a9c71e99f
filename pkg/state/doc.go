// Package state defines persistence-facing contracts for loading and saving
// entity records, plus adapters that plug a Store into the draft session's
// Source/Sink seams.
//
// Responsibilities:
//   - Store[E] only loads/saves a single entity record for a single Ref.
//   - NewSource/NewSink bridge a Store into draft.Source / draft.Sink; the
//     sink folds submitted form+item values back into a full entity before
//     persisting it.
//   - The core draft package remains persistence-agnostic; all persistence
//     logic stays behind Store implementations supplied by consumers.
//
// Data flow:
//
//	Store -> NewSource -> draft.Session.Load(...)
//	draft.Session.Save(...) -> NewSink -> Fold -> Store
//
// Concurrency control:
//
//	Every successful Save mints a fresh Meta.ETag and bumps Meta.Revision. A
//	caller that submits a non-empty ETag asks for a precondition check: the
//	save fails with ErrETagMismatch when the stored record has moved on.
//
// Deterministic keys:
//
//	Ref.Identifier() provides the canonical storage key format "<kind>/<id>".
//	Both bundled stores (sqlite, postgres) key their bucket tables with it, so
//	records written by one backend stay addressable by the other.
package state
