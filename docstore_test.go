package veridia

import "testing"

func TestDocStoreAppendAndGetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := newDocStoreWriter(dir, true)
	if err != nil {
		t.Fatalf("newDocStoreWriter: %v", err)
	}
	records := []DocumentRecord{
		{DocID: 1, Title: "First Doc", Body: "the quick brown fox", Authors: "A. Writer"},
		{DocID: 2, Title: "Second Doc", Body: "jumps over the lazy dog", Authors: "B. Editor"},
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	store, err := openDocStore(dir)
	if err != nil {
		t.Fatalf("openDocStore: %v", err)
	}
	defer store.Close()

	for _, want := range records {
		got, err := store.Get(want.DocID)
		if err != nil {
			t.Fatalf("Get(%d): %v", want.DocID, err)
		}
		if got != want {
			t.Fatalf("Get(%d) = %+v, want %+v", want.DocID, got, want)
		}
	}
}

func TestDocStoreGetUnknownDocID(t *testing.T) {
	dir := t.TempDir()
	w, err := newDocStoreWriter(dir, true)
	if err != nil {
		t.Fatalf("newDocStoreWriter: %v", err)
	}
	if err := w.Append(DocumentRecord{DocID: 1, Title: "Only Doc"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	store, err := openDocStore(dir)
	if err != nil {
		t.Fatalf("openDocStore: %v", err)
	}
	defer store.Close()

	if _, err := store.Get(0); err == nil {
		t.Fatalf("Get(0) succeeded, want ErrDocNotFound")
	}
	if _, err := store.Get(99); err == nil {
		t.Fatalf("Get(99) succeeded, want ErrDocNotFound")
	}
}

func TestDocStoreSanitizesTabsAndNewlines(t *testing.T) {
	dir := t.TempDir()
	w, err := newDocStoreWriter(dir, true)
	if err != nil {
		t.Fatalf("newDocStoreWriter: %v", err)
	}
	if err := w.Append(DocumentRecord{DocID: 1, Title: "Tab\tand\nnewline"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	store, err := openDocStore(dir)
	if err != nil {
		t.Fatalf("openDocStore: %v", err)
	}
	defer store.Close()

	got, err := store.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if got.Title != "Tab and newline" {
		t.Fatalf("Title = %q, want %q", got.Title, "Tab and newline")
	}
}
