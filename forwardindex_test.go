package veridia

import (
	"io"
	"reflect"
	"testing"
)

func TestForwardIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := newForwardIndexWriter(dir, true)
	if err != nil {
		t.Fatalf("newForwardIndexWriter: %v", err)
	}
	records := []ForwardIndexRecord{
		{DocID: 1, WordIDs: []uint32{0, 1, 2}},
		{DocID: 2, WordIDs: []uint32{3}},
		{DocID: 3, WordIDs: []uint32{}},
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := openForwardIndexReader(dir)
	if err != nil {
		t.Fatalf("openForwardIndexReader: %v", err)
	}
	defer r.Close()

	var got []ForwardIndexRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, rec)
	}

	if len(got) != len(records) {
		t.Fatalf("read %d records, want %d", len(got), len(records))
	}
	for i, want := range records {
		if got[i].DocID != want.DocID {
			t.Errorf("record %d DocID = %d, want %d", i, got[i].DocID, want.DocID)
		}
		if len(got[i].WordIDs) != len(want.WordIDs) {
			t.Errorf("record %d WordIDs = %v, want %v", i, got[i].WordIDs, want.WordIDs)
			continue
		}
		if !reflect.DeepEqual(got[i].WordIDs, want.WordIDs) && len(want.WordIDs) > 0 {
			t.Errorf("record %d WordIDs = %v, want %v", i, got[i].WordIDs, want.WordIDs)
		}
	}
}

func TestForwardIndexAppendIsSequential(t *testing.T) {
	dir := t.TempDir()

	w, err := newForwardIndexWriter(dir, true)
	if err != nil {
		t.Fatalf("newForwardIndexWriter: %v", err)
	}
	if err := w.Append(ForwardIndexRecord{DocID: 1, WordIDs: []uint32{10}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w2, err := newForwardIndexWriter(dir, false)
	if err != nil {
		t.Fatalf("newForwardIndexWriter (append mode): %v", err)
	}
	if err := w2.Append(ForwardIndexRecord{DocID: 2, WordIDs: []uint32{11, 12}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := openForwardIndexReader(dir)
	if err != nil {
		t.Fatalf("openForwardIndexReader: %v", err)
	}
	defer r.Close()

	first, err := r.Next()
	if err != nil || first.DocID != 1 {
		t.Fatalf("first record = %+v, err=%v", first, err)
	}
	second, err := r.Next()
	if err != nil || second.DocID != 2 {
		t.Fatalf("second record = %+v, err=%v", second, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("third Next() err = %v, want io.EOF", err)
	}
}
