package draft

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-draft/pkg/activity"
	"github.com/goliatone/go-draft/structural"
)

// Source resolves entities for Load. Returning (nil, nil) means no entity
// exists under the id; Load surfaces that as ErrNotFound.
type Source[E any] interface {
	Fetch(ctx context.Context, id string) (*E, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[E any] func(ctx context.Context, id string) (*E, error)

// Fetch implements Source.
func (f SourceFunc[E]) Fetch(ctx context.Context, id string) (*E, error) {
	if f == nil {
		return nil, ErrNoSource
	}
	return f(ctx, id)
}

// Sink persists the working values during Save. The original pointer is the
// last loaded snapshot, nil in create mode. A sink that returns a non-nil
// entity rebases the session onto it so server-assigned fields flow back; a
// (nil, nil) return rebases onto the values that were submitted.
type Sink[E, F, S any] interface {
	Save(ctx context.Context, original *E, form F, items []S) (*E, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc[E, F, S any] func(ctx context.Context, original *E, form F, items []S) (*E, error)

// Save implements Sink.
func (f SinkFunc[E, F, S]) Save(ctx context.Context, original *E, form F, items []S) (*E, error) {
	if f == nil {
		return nil, ErrNoSink
	}
	return f(ctx, original, form, items)
}

// Config wires the entity-specific strategies for a session. ToForm, ToItems
// and ItemID are required; everything else has a usable default.
type Config[E, F, S any] struct {
	// Source resolves entities for Load. Optional for sessions that only
	// ever start in create mode.
	Source Source[E]

	// Sink persists working values. Save without one returns ErrNoSink.
	Sink Sink[E, F, S]

	// ToForm projects the scalar form values out of an entity. It receives
	// nil in create mode and must return usable defaults.
	ToForm func(entity *E) F

	// ToItems projects the ordered sub-collection out of an entity. It
	// receives nil in create mode.
	ToItems func(entity *E) []S

	// ItemID reports the identity of one sub-item.
	ItemID func(item S) string

	// WithItemID returns item carrying id. Optional; without it AddItem
	// rejects items that arrive without an identity, and updates that try
	// to change an item id are rejected instead of repaired.
	WithItemID func(item S, id string) S

	// EntityID reports the identity of an entity. Optional; lets Reset and
	// saves that return a fresh entity keep the session id current.
	EntityID func(entity *E) string

	// AssignID mints identities for added items. Defaults to uuid.NewString.
	AssignID func() string

	// Equal compares two values of the same shape when deriving dirty state.
	// Defaults to structural.Equal, which treats nil and empty collections
	// as interchangeable.
	Equal func(a, b any) bool

	// Clone deep-copies entities, forms and items at every boundary.
	// Defaults to structural.CloneAny. A custom Clone must return the same
	// dynamic type it was given.
	Clone func(value any) any

	// Rules run against the working values before the sink is invoked.
	Rules *RuleSet
}

func (c Config[E, F, S]) validate() error {
	if c.ToForm == nil {
		return &ConfigError{Field: "ToForm", Reason: "projection is required"}
	}
	if c.ToItems == nil {
		return &ConfigError{Field: "ToItems", Reason: "projection is required"}
	}
	if c.ItemID == nil {
		return &ConfigError{Field: "ItemID", Reason: "identity accessor is required"}
	}
	return nil
}

func (c Config[E, F, S]) withDefaults() Config[E, F, S] {
	if c.AssignID == nil {
		c.AssignID = uuid.NewString
	}
	if c.Equal == nil {
		c.Equal = structural.Equal
	}
	if c.Clone == nil {
		c.Clone = structural.CloneAny
	}
	return c
}

// Option configures session behaviour that does not depend on entity shape.
type Option func(*sessionSettings)

type sessionSettings struct {
	logger        SessionLogger
	ruleLogger    RuleLogger
	hooks         activity.Hooks
	channel       string
	objectType    string
	actorID       string
	userID        string
	tenantID      string
	onDirtyChange func(bool)
	onCancel      func()
}

func applySessionOptions(opts []Option) sessionSettings {
	cfg := sessionSettings{
		logger:     noopSessionLogger{},
		ruleLogger: noopRuleLogger{},
		objectType: "entity",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithActivityHooks fans session lifecycle events out to hooks. Hooks are
// cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *sessionSettings) {
		cfg.hooks = normalized
	}
}

// WithActivityChannel overrides the default channel on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *sessionSettings) {
		cfg.channel = channel
	}
}

// WithObjectType names the entity kind carried on emitted events.
func WithObjectType(objectType string) Option {
	return func(cfg *sessionSettings) {
		if objectType != "" {
			cfg.objectType = objectType
		}
	}
}

// WithActor attributes emitted events to an actor id.
func WithActor(actorID string) Option {
	return func(cfg *sessionSettings) {
		cfg.actorID = actorID
	}
}

// WithUser stamps emitted events with the affected user id.
func WithUser(userID string) Option {
	return func(cfg *sessionSettings) {
		cfg.userID = userID
	}
}

// WithTenant stamps emitted events with a tenant id.
func WithTenant(tenantID string) Option {
	return func(cfg *sessionSettings) {
		cfg.tenantID = tenantID
	}
}

// WithDirtyNotify invokes fn outside the session lock whenever the aggregate
// dirty flag flips.
func WithDirtyNotify(fn func(dirty bool)) Option {
	return func(cfg *sessionSettings) {
		cfg.onDirtyChange = fn
	}
}

// WithCancelNotify invokes fn after Cancel reverts the working values.
func WithCancelNotify(fn func()) Option {
	return func(cfg *sessionSettings) {
		cfg.onCancel = fn
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
