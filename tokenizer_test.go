package veridia

import (
	"reflect"
	"testing"
)

func TestTokenizeFiltersStopwordsAndShortTokens(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	tok := NewTokenizer(cfg)

	got := tok.Tokenize("The Quick Brown Fox jumps over a lazy dog 42 times")
	want := []string{"quick", "brown", "fox", "jumps", "lazy", "dog", "times"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeLowercasesAndSplitsOnPunctuation(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	tok := NewTokenizer(cfg)

	got := tok.Tokenize("Fox-Trotting, FOXES!! foxes.")
	want := []string{"fox", "trotting", "foxes", "foxes"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeCachesRepeatedInput(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	tok := NewTokenizer(cfg)

	first := tok.Tokenize("repeated query text")
	second := tok.Tokenize("repeated query text")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached Tokenize() result changed: %v vs %v", first, second)
	}
	if _, ok := tok.cache.Get("repeated query text"); !ok {
		t.Fatalf("expected input to be cached")
	}
}

func TestTokenizeEmptyInputYieldsNoTokens(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	tok := NewTokenizer(cfg)

	if got := tok.Tokenize(""); len(got) != 0 {
		t.Fatalf("Tokenize(\"\") = %v, want empty", got)
	}
	if got := tok.Tokenize("a an the of"); len(got) != 0 {
		t.Fatalf("all-stopword Tokenize() = %v, want empty", got)
	}
}
