package structural

import (
	"errors"
	"testing"
)

type fieldTarget struct {
	Title string `json:"title"`
	Qty   int    `json:"qty"`
	Rate  float64
	Notes *string
	Tags  []string
	state string
}

func TestSetFieldMatchesNameTagAndCase(t *testing.T) {
	for _, name := range []string{"Title", "title", "TITLE"} {
		var target fieldTarget
		if err := SetField(&target, name, "Groceries"); err != nil {
			t.Fatalf("unexpected error for %q: %v", name, err)
		}
		if target.Title != "Groceries" {
			t.Fatalf("expected %q to resolve the title field, got %+v", name, target)
		}
	}

	var target fieldTarget
	if err := SetField(&target, "qty", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Qty != 3 {
		t.Fatalf("expected the json tag to resolve, got %+v", target)
	}
}

func TestSetFieldConversions(t *testing.T) {
	var target fieldTarget
	if err := SetField(&target, "qty", int64(5)); err != nil {
		t.Fatalf("unexpected error widening int64: %v", err)
	}
	if target.Qty != 5 {
		t.Fatalf("unexpected qty %d", target.Qty)
	}
	if err := SetField(&target, "Rate", 2); err != nil {
		t.Fatalf("unexpected error converting int to float64: %v", err)
	}
	if target.Rate != 2 {
		t.Fatalf("unexpected rate %v", target.Rate)
	}

	if err := SetField(&target, "qty", "12"); !errors.Is(err, ErrIncompatibleValue) {
		t.Fatalf("expected a string-to-int assignment to be rejected, got %v", err)
	}
	if err := SetField(&target, "title", 42); !errors.Is(err, ErrIncompatibleValue) {
		t.Fatalf("expected an int-to-string assignment to be rejected, got %v", err)
	}
	if target.Qty != 5 || target.Title != "" {
		t.Fatalf("rejected assignments must leave the target untouched: %+v", target)
	}
}

func TestSetFieldNilSemantics(t *testing.T) {
	notes := "keep"
	target := fieldTarget{Notes: &notes, Tags: []string{"a"}}

	if err := SetField(&target, "Notes", nil); err != nil {
		t.Fatalf("unexpected error nilling a pointer: %v", err)
	}
	if target.Notes != nil {
		t.Fatalf("expected the pointer to be zeroed")
	}
	if err := SetField(&target, "Tags", nil); err != nil {
		t.Fatalf("unexpected error nilling a slice: %v", err)
	}
	if target.Tags != nil {
		t.Fatalf("expected the slice to be zeroed")
	}
	if err := SetField(&target, "qty", nil); !errors.Is(err, ErrIncompatibleValue) {
		t.Fatalf("expected nil into an int field to be rejected, got %v", err)
	}
}

func TestSetFieldUnknownAndHiddenFields(t *testing.T) {
	var target fieldTarget
	if err := SetField(&target, "color", "blue"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected an unknown field to be reported, got %v", err)
	}
	if err := SetField(&target, "state", "open"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected an unexported field to stay hidden, got %v", err)
	}
}

func TestSetFieldInvalidTargets(t *testing.T) {
	number := 7
	intMap := map[int]string{}
	cases := []struct {
		name   string
		target any
	}{
		{"nil target", nil},
		{"non-pointer", fieldTarget{}},
		{"pointer to int", &number},
		{"nil struct pointer", (*fieldTarget)(nil)},
		{"non-string map keys", &intMap},
	}
	for _, tc := range cases {
		if err := SetField(tc.target, "title", "x"); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("%s: expected ErrInvalidTarget, got %v", tc.name, err)
		}
	}
}

func TestSetFieldMapTargets(t *testing.T) {
	var values map[string]any
	if err := SetField(&values, "title", "Groceries"); err != nil {
		t.Fatalf("unexpected error on a nil map: %v", err)
	}
	if values["title"] != "Groceries" {
		t.Fatalf("expected the nil map to be allocated and keyed, got %#v", values)
	}

	counts := map[string]int{}
	if err := SetField(&counts, "qty", int64(3)); err != nil {
		t.Fatalf("unexpected error converting into a map element: %v", err)
	}
	if counts["qty"] != 3 {
		t.Fatalf("unexpected element %v", counts)
	}
	if err := SetField(&counts, "qty", "many"); !errors.Is(err, ErrIncompatibleValue) {
		t.Fatalf("expected an incompatible element to be rejected, got %v", err)
	}
	if err := SetField(&counts, "qty", nil); !errors.Is(err, ErrIncompatibleValue) {
		t.Fatalf("expected nil into an int element to be rejected, got %v", err)
	}

	tags := map[string][]string{}
	if err := SetField(&tags, "tags", nil); err != nil {
		t.Fatalf("unexpected error storing a nil element: %v", err)
	}
	stored, ok := tags["tags"]
	if !ok || stored != nil {
		t.Fatalf("expected the key to exist holding nil, got %#v present=%v", stored, ok)
	}
}
