package draft

import (
	"fmt"
	"sort"
	"strings"
)

// Error implements error for sentinel declarations below without pulling in
// errors.New at every site.
type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const (
	// ErrNotFound reports that the source resolved the fetch but no entity
	// exists under the requested id.
	ErrNotFound = sentinelError("draft: entity not found")

	// ErrSaveInFlight reports that Save was called while a previous Save had
	// not completed. The second call performs no work.
	ErrSaveInFlight = sentinelError("draft: save already in flight")

	// ErrNoSource reports a Load against a session configured without a source.
	ErrNoSource = sentinelError("draft: no source configured")

	// ErrNoSink reports a Save against a session configured without a sink.
	ErrNoSink = sentinelError("draft: no sink configured")

	// ErrMissingID reports an AddItem call where the item carries no identity
	// and the session has no way to assign one.
	ErrMissingID = sentinelError("draft: sub-item has no id and no id setter is configured")

	// ErrDuplicateID reports an AddItem call whose identity collides with an
	// item already in the working collection.
	ErrDuplicateID = sentinelError("draft: duplicate sub-item id")

	// ErrImmutableID reports an item update or patch that attempted to change
	// the item identity on a session that cannot restore it.
	ErrImmutableID = sentinelError("draft: sub-item id cannot change")
)

// ConfigError reports a Config or option that cannot produce a working
// session. These are programming errors and fail construction loudly.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field == "" {
		return fmt.Sprintf("draft: config: %s", e.Reason)
	}
	return fmt.Sprintf("draft: config: %s: %s", e.Field, e.Reason)
}

// FetchError wraps a source failure with the id that was being loaded.
type FetchError struct {
	EntityID string
	Err      error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("draft: fetch %s: %v", describeEntityID(e.EntityID), e.Err)
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SaveError wraps a sink failure with the id that was being saved. The
// working values the session held when the save started stay untouched.
type SaveError struct {
	EntityID string
	Err      error
}

func (e *SaveError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("draft: save %s: %v", describeEntityID(e.EntityID), e.Err)
}

func (e *SaveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeEntityID(id string) string {
	if id == "" {
		return "entity=<new>"
	}
	return fmt.Sprintf("entity=%q", id)
}

// FieldError describes one failed validation rule on one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates the field errors produced by a rule set run.
// Save returns it without touching the sink.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Fields) == 0 {
		return "draft: validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "draft: validation failed: " + strings.Join(parts, "; ")
}

// Messages groups failure messages by field name for render layers.
func (e *ValidationError) Messages() map[string][]string {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	out := make(map[string][]string, len(e.Fields))
	for _, fe := range e.Fields {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// FieldNames lists the failing fields in sorted order.
func (e *ValidationError) FieldNames() []string {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(e.Fields))
	names := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		if _, ok := seen[fe.Field]; ok {
			continue
		}
		seen[fe.Field] = struct{}{}
		names = append(names, fe.Field)
	}
	sort.Strings(names)
	return names
}
