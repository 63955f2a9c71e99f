package structural

import (
	"testing"
	"time"
)

type profile struct {
	Name string
	Tags []string
	Meta map[string]string
}

type stamped struct {
	At time.Time
}

func TestEqualScalarsAndTypes(t *testing.T) {
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"different numeric types", 1, int64(1), false},
		{"equal strings", "a", "a", true},
		{"string vs int", "1", 1, false},
		{"both nil", nil, nil, true},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: Equal(%v, %v) = %v, want %v", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEqualTreatsNilAndEmptyAlike(t *testing.T) {
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil vs empty slice", []string(nil), []string{}, true},
		{"nil vs empty map", map[string]int(nil), map[string]int{}, true},
		{"untyped nil vs empty slice", nil, []string{}, true},
		{"untyped nil vs populated slice", nil, []string{"x"}, false},
		{"absent vs populated map", map[string]int(nil), map[string]int{"a": 1}, false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: Equal(%#v, %#v) = %v, want %v", tc.name, tc.a, tc.b, got, tc.want)
		}
	}

	if !Equal(profile{Name: "a"}, profile{Name: "a", Tags: []string{}, Meta: map[string]string{}}) {
		t.Fatalf("empty collections inside structs must compare equal to absent ones")
	}
}

func TestEqualSliceOrderMatters(t *testing.T) {
	if Equal([]int{1, 2}, []int{2, 1}) {
		t.Fatalf("reordered slices must not compare equal")
	}
	if !Equal([]int{1, 2}, []int{1, 2}) {
		t.Fatalf("identical slices must compare equal")
	}
}

func TestEqualMaps(t *testing.T) {
	if Equal(map[string]int{"a": 1}, map[string]int{"a": 2}) {
		t.Fatalf("different values under the same key must not compare equal")
	}
	if Equal(map[string]int{"a": 1}, map[string]int{"b": 1}) {
		t.Fatalf("different keys must not compare equal")
	}
	if !Equal(map[string][]string{"a": nil}, map[string][]string{"a": {}}) {
		t.Fatalf("nested nil and empty slices must compare equal")
	}
}

func TestEqualPointers(t *testing.T) {
	a := profile{Name: "x"}
	b := profile{Name: "x"}
	if !Equal(&a, &b) {
		t.Fatalf("pointers to equal values must compare equal")
	}
	if Equal((*profile)(nil), &b) {
		t.Fatalf("a nil pointer must not equal a populated one")
	}
	if !Equal((*profile)(nil), (*profile)(nil)) {
		t.Fatalf("two nil pointers must compare equal")
	}
}

func TestEqualDispatchesToEqualMethod(t *testing.T) {
	instant := time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)
	rezoned := instant.In(time.FixedZone("UTC+2", 2*3600))
	if !Equal(instant, rezoned) {
		t.Fatalf("the same instant in different zones must compare equal")
	}

	now := time.Now()
	if !Equal(now, now.Round(0)) {
		t.Fatalf("stripping the monotonic reading must not break equality")
	}

	if !Equal(stamped{At: instant}, stamped{At: rezoned}) {
		t.Fatalf("time fields inside structs must compare by instant")
	}
	if Equal(stamped{At: instant}, stamped{At: instant.Add(time.Second)}) {
		t.Fatalf("different instants must not compare equal")
	}
}
