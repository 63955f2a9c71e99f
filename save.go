package draft

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-draft/pkg/activity"
)

// Save validates the working values, runs the sink exactly once and rebases
// the session on success. While a save is in flight a second call returns
// ErrSaveInFlight without touching the sink; mutators stay usable and any
// edits made during the flight survive the rebase.
//
// Outcomes: a rule failure returns a ValidationError and sets FieldErrors
// without invoking the sink. A sink error returns a SaveError, surfaces it
// on Err and preserves the working values bit for bit. A sink that returns
// an entity becomes the new snapshot with baselines re-derived from it; a
// (nil, nil) sink return rebases the baseline onto the values as of save
// completion, trusting that the backend stored what it was given.
func (s *Session[E, F, S]) Save(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	if s.cfg.Sink == nil {
		s.mu.Unlock()
		return ErrNoSink
	}
	entityID := s.entityID
	s.fieldErrs = nil

	if s.cfg.Rules != nil {
		formMap, itemMaps, projErr := projectRuleInputs(s.form, s.items)
		if projErr != nil {
			dirty := s.dirtyLocked()
			s.mu.Unlock()
			s.logOp("save", entityID, dirty, start, projErr)
			return projErr
		}
		if err := s.cfg.Rules.Validate(formMap, itemMaps, s.settings.ruleLogger); err != nil {
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				s.fieldErrs = append([]FieldError{}, vErr.Fields...)
			}
			dirty := s.dirtyLocked()
			s.mu.Unlock()
			s.logOp("save", entityID, dirty, start, err)
			return err
		}
	}

	original := s.cloneEntity(s.snap)
	submittedForm := s.cloneForm(s.form)
	submittedItems := s.cloneItems(s.items)
	s.saving = true
	s.mu.Unlock()

	saved, sinkErr := s.cfg.Sink.Save(ctx, original, submittedForm, submittedItems)

	s.mu.Lock()
	s.saving = false
	if sinkErr != nil {
		err := &SaveError{EntityID: entityID, Err: sinkErr}
		s.err = err
		dirty := s.dirtyLocked()
		s.mu.Unlock()
		s.logOp("save", entityID, dirty, start, err)
		s.notifyActivity(ctx, activity.BuildSaveFailedEvent(s.eventInput(entityID, map[string]any{
			"error": sinkErr.Error(),
		})))
		return err
	}

	if saved != nil {
		editedDuringSave := !s.cfg.Equal(s.form, submittedForm) || !s.cfg.Equal(s.items, submittedItems)
		s.snap = s.cloneEntity(saved)
		s.entityID = s.resolveEntityID(saved, entityID)
		s.baseForm = s.cfg.ToForm(s.snap)
		s.baseItems = s.cfg.ToItems(s.snap)
		if !editedDuringSave {
			s.form = s.cloneForm(s.baseForm)
			s.items = s.cloneItems(s.baseItems)
		}
	} else {
		s.baseForm = s.cloneForm(s.form)
		s.baseItems = s.cloneItems(s.items)
	}
	s.touched = nil
	s.markTouchedLocked()
	s.err = nil
	savedID := s.entityID
	dirty := s.dirtyLocked()
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	s.logOp("save", savedID, dirty, start, nil)
	s.notifyActivity(ctx, activity.BuildSavedEvent(s.eventInput(savedID, map[string]any{
		"dirty": dirty,
	})))
	return nil
}

// Cancel discards every unsaved edit by re-deriving the working values from
// the current snapshot, and clears the error surfaces. Fetch state and an
// in-flight save are left alone.
func (s *Session[E, F, S]) Cancel() {
	start := time.Now()
	s.mu.Lock()
	s.form = s.cloneForm(s.baseForm)
	s.items = s.cloneItems(s.baseItems)
	s.touched = nil
	s.err = nil
	s.fieldErrs = nil
	entityID := s.entityID
	signal := s.captureDirtySignal()
	onCancel := s.settings.onCancel
	s.mu.Unlock()
	runSignal(signal)
	if onCancel != nil {
		onCancel()
	}
	s.logOp("cancel", entityID, false, start, nil)
	s.notifyActivity(context.Background(), activity.BuildCanceledEvent(s.eventInput(entityID, nil)))
}

// Reset rebases the session onto entity as if it had just been loaded,
// discarding edits and errors. A nil entity behaves like Cancel.
func (s *Session[E, F, S]) Reset(entity *E) {
	if entity == nil {
		s.Cancel()
		return
	}
	start := time.Now()
	s.mu.Lock()
	s.installBaselineLocked(entity, s.resolveEntityID(entity, s.entityID))
	entityID := s.entityID
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	s.logOp("reset", entityID, false, start, nil)
	s.notifyActivity(context.Background(), activity.BuildResetEvent(s.eventInput(entityID, nil)))
}

func (s *Session[E, F, S]) resolveEntityID(entity *E, fallback string) string {
	if entity == nil || s.cfg.EntityID == nil {
		return fallback
	}
	if id := s.cfg.EntityID(entity); id != "" {
		return id
	}
	return fallback
}
