package draft

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-draft/pkg/activity"
)

// Session owns one editable entity. It keeps an immutable snapshot of what
// the backend last returned next to working copies of the scalar form and
// the ordered sub-item collection, and derives dirty state by comparing the
// two. All methods are safe for concurrent use.
//
// Mutators stay usable while a save or fetch is in flight. The only
// concurrency gate is the save guard itself: a second Save call returns
// ErrSaveInFlight without touching the sink.
type Session[E, F, S any] struct {
	cfg      Config[E, F, S]
	settings sessionSettings
	emitter  *activity.Emitter

	mu        sync.Mutex
	entityID  string
	snap      *E
	baseForm  F
	baseItems []S
	form      F
	items     []S
	touched   map[string]struct{}
	loading   bool
	fetching  bool
	saving    bool
	err       error
	fieldErrs []FieldError
	loadGen   uint64
	lastDirty bool
}

// New validates cfg and constructs an idle session. Load establishes the
// first baseline; until then every reader returns zero values.
func New[E, F, S any](cfg Config[E, F, S], opts ...Option) (*Session[E, F, S], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	settings := applySessionOptions(opts)
	emitter := activity.NewEmitter(settings.hooks, activity.Config{
		Enabled: len(settings.hooks) > 0,
		Channel: settings.channel,
	})
	return &Session[E, F, S]{
		cfg:      cfg.withDefaults(),
		settings: settings,
		emitter:  emitter,
	}, nil
}

// Snapshot returns a deep copy of the last persisted entity. It is nil
// before the first successful load and in create mode.
func (s *Session[E, F, S]) Snapshot() *E {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneEntity(s.snap)
}

// EntityID returns the id the session is bound to, empty in create mode.
func (s *Session[E, F, S]) EntityID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entityID
}

// Form returns a deep copy of the working form values.
func (s *Session[E, F, S]) Form() F {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneForm(s.form)
}

// Items returns a deep copy of the working sub-item collection in order.
func (s *Session[E, F, S]) Items() []S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneItems(s.items)
}

// ItemCount reports the size of the working collection without copying it.
func (s *Session[E, F, S]) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// FormDirty reports whether the working form differs from the baseline.
func (s *Session[E, F, S]) FormDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formDirtyLocked()
}

// ItemsDirty reports whether the working collection differs from the
// baseline in membership, content or order.
func (s *Session[E, F, S]) ItemsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsDirtyLocked()
}

// Dirty reports whether any unsaved edit exists.
func (s *Session[E, F, S]) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

// Loading reports whether the initial fetch for the current id is in flight.
func (s *Session[E, F, S]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Fetching reports whether any fetch is in flight, including refetches of
// an already loaded entity.
func (s *Session[E, F, S]) Fetching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetching
}

// Saving reports whether a save is in flight.
func (s *Session[E, F, S]) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Err returns the most recent lifecycle failure. Successful loads and saves
// clear it; mutators leave it alone.
func (s *Session[E, F, S]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// FieldErrors returns the field-level failures from the last rejected save.
func (s *Session[E, F, S]) FieldErrors() []FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fieldErrs) == 0 {
		return nil
	}
	return append([]FieldError{}, s.fieldErrs...)
}

func (s *Session[E, F, S]) formDirtyLocked() bool {
	return !s.cfg.Equal(s.form, s.baseForm)
}

func (s *Session[E, F, S]) itemsDirtyLocked() bool {
	return !s.cfg.Equal(s.items, s.baseItems)
}

func (s *Session[E, F, S]) dirtyLocked() bool {
	return s.formDirtyLocked() || s.itemsDirtyLocked()
}

func (s *Session[E, F, S]) cloneEntity(entity *E) *E {
	if entity == nil {
		return nil
	}
	return cloneAs(s.cfg.Clone, entity)
}

func (s *Session[E, F, S]) cloneForm(form F) F {
	return cloneAs(s.cfg.Clone, form)
}

func (s *Session[E, F, S]) cloneItem(item S) S {
	return cloneAs(s.cfg.Clone, item)
}

func (s *Session[E, F, S]) cloneItems(items []S) []S {
	if items == nil {
		return nil
	}
	out := make([]S, len(items))
	for i, item := range items {
		out[i] = s.cloneItem(item)
	}
	return out
}

// cloneAs funnels the configured clone through a typed boundary. A clone
// that changes the dynamic type is a programming error and panics via the
// assertion.
func cloneAs[T any](clone func(any) any, value T) T {
	out := clone(value)
	if out == nil {
		var zero T
		return zero
	}
	return out.(T)
}

// installBaseline replaces the snapshot and re-derives baselines and working
// values from it. Callers hold the lock.
func (s *Session[E, F, S]) installBaselineLocked(entity *E, entityID string) {
	s.snap = s.cloneEntity(entity)
	s.entityID = entityID
	s.baseForm = s.cfg.ToForm(s.snap)
	s.baseItems = s.cfg.ToItems(s.snap)
	s.form = s.cloneForm(s.baseForm)
	s.items = s.cloneItems(s.baseItems)
	s.touched = nil
	s.err = nil
	s.fieldErrs = nil
}

func (s *Session[E, F, S]) indexOfLocked(id string) int {
	for i, item := range s.items {
		if s.cfg.ItemID(item) == id {
			return i
		}
	}
	return -1
}

// captureDirtySignal snapshots the dirty flag under the lock and returns the
// notification to run after unlock, or nil when nothing flipped.
func (s *Session[E, F, S]) captureDirtySignal() func() {
	dirty := s.dirtyLocked()
	if dirty == s.lastDirty {
		return nil
	}
	s.lastDirty = dirty
	fn := s.settings.onDirtyChange
	if fn == nil {
		return nil
	}
	return func() { fn(dirty) }
}

func runSignal(signal func()) {
	if signal != nil {
		signal()
	}
}

func (s *Session[E, F, S]) eventInput(entityID string, meta map[string]any) activity.EventInput {
	return activity.EventInput{
		ActorID:    s.settings.actorID,
		UserID:     s.settings.userID,
		TenantID:   s.settings.tenantID,
		EntityType: s.settings.objectType,
		EntityID:   entityID,
		Metadata:   meta,
	}
}

// notifyActivity forwards event to the configured hooks. Hook failures are
// logged and never reach session state.
func (s *Session[E, F, S]) notifyActivity(ctx context.Context, event activity.Event) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.settings.logger.LogSession(SessionLogEvent{Op: "activity", EntityID: event.ObjectID, Err: err})
	}
}

func (s *Session[E, F, S]) logOp(op, entityID string, dirty bool, start time.Time, err error) {
	s.settings.logger.LogSession(SessionLogEvent{
		Op:       op,
		EntityID: entityID,
		Dirty:    dirty,
		Duration: time.Since(start),
		Err:      err,
	})
}
