package draft

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ChangeSet captures how the working values differ from the baseline at one
// point in time. Sinks and render layers use it to describe or submit
// partial updates; the session itself always saves full values.
type ChangeSet[S any] struct {
	FormFields []string        `json:"form_fields,omitempty"`
	Creates    []S             `json:"creates,omitempty"`
	Updates    []ItemUpdate[S] `json:"updates,omitempty"`
	Deletes    []string        `json:"deletes,omitempty"`
	Reordered  bool            `json:"reordered,omitempty"`
}

// ItemUpdate pairs the baseline and working versions of one changed item.
type ItemUpdate[S any] struct {
	ID     string `json:"id"`
	Before S      `json:"before"`
	After  S      `json:"after"`
}

// Empty reports whether the change set carries no differences.
func (c ChangeSet[S]) Empty() bool {
	return len(c.FormFields) == 0 && len(c.Creates) == 0 && len(c.Updates) == 0 &&
		len(c.Deletes) == 0 && !c.Reordered
}

// ToJSON serialises the change set for logging or transport helpers.
func (c ChangeSet[S]) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// ChangesFromJSON deserialises a payload previously generated via ToJSON.
func ChangesFromJSON[S any](payload []byte) (ChangeSet[S], error) {
	var changes ChangeSet[S]
	if err := json.Unmarshal(payload, &changes); err != nil {
		return ChangeSet[S]{}, err
	}
	return changes, nil
}

// Changes diffs the working values against the baseline. Form fields are
// compared through their json encoding; items are matched by id, with
// Reordered set when the shared ids appear in a different sequence.
func (s *Session[E, F, S]) Changes() (ChangeSet[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := changedFieldsLocked(s.cfg.Equal, s.form, s.baseForm)
	if err != nil {
		return ChangeSet[S]{}, err
	}
	changes := ChangeSet[S]{FormFields: fields}

	baseIndex := make(map[string]int, len(s.baseItems))
	baseOrder := make([]string, 0, len(s.baseItems))
	for i, item := range s.baseItems {
		id := s.cfg.ItemID(item)
		baseIndex[id] = i
		baseOrder = append(baseOrder, id)
	}
	workingIDs := make(map[string]struct{}, len(s.items))
	workingOrder := make([]string, 0, len(s.items))
	for _, item := range s.items {
		id := s.cfg.ItemID(item)
		workingIDs[id] = struct{}{}
		workingOrder = append(workingOrder, id)
		baseIdx, existed := baseIndex[id]
		if !existed {
			changes.Creates = append(changes.Creates, s.cloneItem(item))
			continue
		}
		if !s.cfg.Equal(item, s.baseItems[baseIdx]) {
			changes.Updates = append(changes.Updates, ItemUpdate[S]{
				ID:     id,
				Before: s.cloneItem(s.baseItems[baseIdx]),
				After:  s.cloneItem(item),
			})
		}
	}
	for _, id := range baseOrder {
		if _, kept := workingIDs[id]; !kept {
			changes.Deletes = append(changes.Deletes, id)
		}
	}
	changes.Reordered = sharedOrderChanged(baseOrder, workingOrder, baseIndex, workingIDs)
	return changes, nil
}

// sharedOrderChanged reports whether the ids present on both sides appear
// in a different relative sequence.
func sharedOrderChanged(baseOrder, workingOrder []string, baseIndex map[string]int, workingIDs map[string]struct{}) bool {
	baseShared := make([]string, 0, len(baseOrder))
	for _, id := range baseOrder {
		if _, kept := workingIDs[id]; kept {
			baseShared = append(baseShared, id)
		}
	}
	workingShared := make([]string, 0, len(workingOrder))
	for _, id := range workingOrder {
		if _, existed := baseIndex[id]; existed {
			workingShared = append(workingShared, id)
		}
	}
	if len(baseShared) != len(workingShared) {
		return true
	}
	for i := range baseShared {
		if baseShared[i] != workingShared[i] {
			return true
		}
	}
	return false
}

func changedFieldsLocked(equal func(a, b any) bool, working, baseline any) ([]string, error) {
	workingMap, err := toFieldMap(working)
	if err != nil {
		return nil, err
	}
	baselineMap, err := toFieldMap(baseline)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(workingMap)+len(baselineMap))
	var fields []string
	for key := range workingMap {
		seen[key] = struct{}{}
	}
	for key := range baselineMap {
		seen[key] = struct{}{}
	}
	for key := range seen {
		if !equal(workingMap[key], baselineMap[key]) {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields, nil
}

// toFieldMap projects a form value onto its json object representation.
func toFieldMap(value any) (map[string]any, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("draft: project form: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("draft: project form: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func projectRuleInputs[F, S any](form F, items []S) (map[string]any, []map[string]any, error) {
	formMap, err := toFieldMap(form)
	if err != nil {
		return nil, nil, err
	}
	itemMaps := make([]map[string]any, 0, len(items))
	for _, item := range items {
		itemMap, err := toFieldMap(item)
		if err != nil {
			return nil, nil, err
		}
		itemMaps = append(itemMaps, itemMap)
	}
	return formMap, itemMaps, nil
}
