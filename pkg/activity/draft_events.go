package activity

import (
	"strings"
	"time"
)

// EventInput describes the common fields for session lifecycle events.
type EventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	EntityType string
	EntityID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildLoadedEvent constructs a normalized activity event for a completed
// load, including create-mode loads.
func BuildLoadedEvent(input EventInput) Event {
	return buildSessionEvent("draft.loaded", input)
}

// BuildSavedEvent constructs a normalized activity event for a successful save.
func BuildSavedEvent(input EventInput) Event {
	return buildSessionEvent("draft.saved", input)
}

// BuildSaveFailedEvent constructs a normalized activity event for a sink failure.
func BuildSaveFailedEvent(input EventInput) Event {
	return buildSessionEvent("draft.save_failed", input)
}

// BuildCanceledEvent constructs a normalized activity event for discarded edits.
func BuildCanceledEvent(input EventInput) Event {
	return buildSessionEvent("draft.canceled", input)
}

// BuildResetEvent constructs a normalized activity event for a session rebased
// onto a caller-supplied entity.
func BuildResetEvent(input EventInput) Event {
	return buildSessionEvent("draft.reset", input)
}

func buildSessionEvent(verb string, input EventInput) Event {
	objectType := strings.TrimSpace(input.EntityType)
	if objectType == "" {
		objectType = "entity"
	}
	// Create-mode sessions have no id until the first save returns one.
	objectID := strings.TrimSpace(input.EntityID)
	if objectID == "" {
		objectID = "new"
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   cloneMap(input.Metadata),
		OccurredAt: input.OccurredAt,
	}
}
