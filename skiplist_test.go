package veridia

import (
	"reflect"
	"testing"
)

func TestOrderedLexiconInsertAndGet(t *testing.T) {
	sl := newOrderedLexicon()
	sl.insert("fox", 3)
	sl.insert("ant", 1)
	sl.insert("dog", 2)

	tests := []struct {
		surface string
		wantID  uint32
		wantOK  bool
	}{
		{"fox", 3, true},
		{"ant", 1, true},
		{"dog", 2, true},
		{"cat", 0, false},
	}
	for _, tt := range tests {
		id, ok := sl.get(tt.surface)
		if ok != tt.wantOK || id != tt.wantID {
			t.Errorf("get(%q) = (%d, %v), want (%d, %v)", tt.surface, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestOrderedLexiconInsertIsIdempotent(t *testing.T) {
	sl := newOrderedLexicon()
	sl.insert("fox", 1)
	sl.insert("fox", 99)

	id, ok := sl.get("fox")
	if !ok || id != 1 {
		t.Fatalf("get(fox) = (%d, %v), want (1, true); re-insert must not overwrite", id, ok)
	}
}

func TestOrderedLexiconAllIsSorted(t *testing.T) {
	sl := newOrderedLexicon()
	for i, s := range []string{"fox", "ant", "dog", "bee", "cat"} {
		sl.insert(s, uint32(i))
	}

	got := sl.all()
	want := []string{"ant", "bee", "cat", "dog", "fox"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("all() = %v, want %v", got, want)
	}
}

func TestOrderedLexiconPrefixScan(t *testing.T) {
	sl := newOrderedLexicon()
	for i, s := range []string{"fox", "foxes", "foxglove", "fort", "ant"} {
		sl.insert(s, uint32(i))
	}

	got := sl.prefixScan("fox", 10)
	want := []string{"fox", "foxes", "foxglove"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("prefixScan(fox) = %v, want %v", got, want)
	}

	if got := sl.prefixScan("fox", 1); len(got) != 1 || got[0] != "fox" {
		t.Fatalf("prefixScan(fox, limit=1) = %v, want [fox]", got)
	}

	if got := sl.prefixScan("zzz", 10); len(got) != 0 {
		t.Fatalf("prefixScan(zzz) = %v, want empty", got)
	}
}
