package draft

import (
	"sort"

	"github.com/goliatone/go-draft/structural"
)

// SetForm replaces the entire working form with a copy of form.
func (s *Session[E, F, S]) SetForm(form F) {
	s.mu.Lock()
	s.form = s.cloneForm(form)
	s.markTouchedLocked()
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
}

// UpdateForm hands fn a copy of the working form and stores what it
// returns. The callback must not retain the copy.
func (s *Session[E, F, S]) UpdateForm(fn func(form F) F) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.form = s.cloneForm(fn(s.cloneForm(s.form)))
	s.markTouchedLocked()
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
}

// SetField assigns one named field on the working form. Struct forms match
// by exported name (case-insensitively) or json tag; map forms are keyed
// directly. The form is untouched when the assignment fails.
func (s *Session[E, F, S]) SetField(name string, value any) error {
	s.mu.Lock()
	form := s.cloneForm(s.form)
	if err := structural.SetField(&form, name, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.form = form
	s.markTouchedLocked()
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	return nil
}

// Touched lists the form fields that have differed from the baseline at any
// point since it was installed, sorted by name. A field edited back to its
// original value stays touched until the next load, save, cancel or reset;
// ChangedFields drops it as soon as the values match again.
func (s *Session[E, F, S]) Touched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.touched) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.touched))
	for field := range s.touched {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

// markTouchedLocked folds the currently changed fields into the touched set.
// Projection failures leave the set as it was; ChangedFields reports them.
func (s *Session[E, F, S]) markTouchedLocked() {
	fields, err := changedFieldsLocked(s.cfg.Equal, s.form, s.baseForm)
	if err != nil || len(fields) == 0 {
		return
	}
	if s.touched == nil {
		s.touched = make(map[string]struct{}, len(fields))
	}
	for _, field := range fields {
		s.touched[field] = struct{}{}
	}
}

// ChangedFields lists the form fields whose working value differs from the
// baseline, sorted by name. Field names follow the form's json encoding.
func (s *Session[E, F, S]) ChangedFields() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return changedFieldsLocked(s.cfg.Equal, s.form, s.baseForm)
}
