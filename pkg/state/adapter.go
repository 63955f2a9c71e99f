package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	draft "github.com/goliatone/go-draft"
)

// Fold merges a submitted form and item list back into a full entity. The
// original pointer is nil when the session saves a brand-new entity.
type Fold[E, F, S any] func(original *E, form F, items []S) E

// SinkConfig wires entity identity handling for a store-backed sink.
type SinkConfig[E any] struct {
	// Kind namespaces records in the store.
	Kind string
	// EntityID reads the identifier off a folded entity.
	EntityID func(entity *E) string
	// SetID stamps a minted identifier onto a folded entity. Optional; without
	// it a folded entity that carries no id fails the save.
	SetID func(entity E, id string) E
	// AssignID mints identifiers for create-mode saves. Defaults to uuid.NewString.
	AssignID func() string
}

// NewSource adapts a Store into a draft.Source for one entity kind. A missing
// record fetches as (nil, nil); the session turns that into its not-found
// error.
func NewSource[E any](store Store[E], kind string) (draft.SourceFunc[E], error) {
	if store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if strings.TrimSpace(kind) == "" {
		return nil, fmt.Errorf("state: kind is required")
	}
	return func(ctx context.Context, id string) (*E, error) {
		entity, _, ok, err := store.Load(ctx, Ref{Kind: kind, ID: id})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return &entity, nil
	}, nil
}

// NewSink adapts a Store into a draft.Sink. fold rebuilds the entity from the
// submitted values; the result is persisted under its kind/id and returned so
// the session can rebase on it.
func NewSink[E, F, S any](store Store[E], fold Fold[E, F, S], cfg SinkConfig[E]) (draft.SinkFunc[E, F, S], error) {
	if store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if fold == nil {
		return nil, fmt.Errorf("state: fold is required")
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		return nil, fmt.Errorf("state: kind is required")
	}
	if cfg.EntityID == nil {
		return nil, fmt.Errorf("state: entity id accessor is required")
	}
	assignID := cfg.AssignID
	if assignID == nil {
		assignID = uuid.NewString
	}
	return func(ctx context.Context, original *E, form F, items []S) (*E, error) {
		next := fold(original, form, items)
		id := cfg.EntityID(&next)
		if id == "" {
			if cfg.SetID == nil {
				return nil, fmt.Errorf("state: folded %s entity has no id and no SetID is configured", cfg.Kind)
			}
			id = assignID()
			next = cfg.SetID(next, id)
		}
		if _, err := store.Save(ctx, Ref{Kind: cfg.Kind, ID: id}, next, Meta{}); err != nil {
			return nil, fmt.Errorf("state: save %s/%s: %w", cfg.Kind, id, err)
		}
		return &next, nil
	}, nil
}
