package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrETagMismatch reports a failed optimistic-concurrency precondition: the
// save carried an ETag that no longer matches the stored record.
var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted entity record.
type Ref struct {
	Kind string
	ID   string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	ETag      string            `json:"etag,omitempty"`
	Revision  int64             `json:"revision,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one entity record per Ref.
//
// Save treats a non-empty submitted ETag as a precondition and fails with
// ErrETagMismatch when the stored record carries a different one. Successful
// saves mint a fresh ETag and bump Revision; the returned Meta describes the
// record as persisted.
type Store[E any] interface {
	Load(ctx context.Context, ref Ref) (entity E, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, entity E, meta Meta) (Meta, error)
}

// Identifier returns the canonical storage key "<kind>/<id>".
func (r Ref) Identifier() (string, error) {
	kind := strings.TrimSpace(r.Kind)
	id := strings.TrimSpace(r.ID)
	if kind == "" {
		return "", fmt.Errorf("state: kind is required")
	}
	if strings.ContainsRune(kind, '/') {
		return "", fmt.Errorf("state: kind %q must not contain %q", r.Kind, "/")
	}
	if id == "" {
		return "", fmt.Errorf("state: id is required for kind %q", r.Kind)
	}
	return kind + "/" + id, nil
}

// CheckPrecondition enforces the Save ETag contract. Store implementations
// call it with the currently stored Meta before overwriting a record.
func CheckPrecondition(stored, submitted Meta, exists bool) error {
	if submitted.ETag == "" || !exists {
		return nil
	}
	if stored.ETag != "" && stored.ETag != submitted.ETag {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, submitted.ETag, stored.ETag)
	}
	return nil
}

// NextMeta derives the metadata recorded by a successful save.
func NextMeta(stored, submitted Meta) Meta {
	out := Meta{
		ETag:      uuid.NewString(),
		Revision:  stored.Revision + 1,
		UpdatedAt: submitted.UpdatedAt,
		Extra:     submitted.Extra,
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}
	if out.Extra == nil {
		out.Extra = stored.Extra
	}
	return out
}
