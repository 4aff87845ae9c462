package veridia

import (
	"reflect"
	"testing"
)

func seedForwardIndex(t *testing.T, dir string, records []ForwardIndexRecord) {
	t.Helper()
	w, err := newForwardIndexWriter(dir, true)
	if err != nil {
		t.Fatalf("newForwardIndexWriter: %v", err)
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuildFromForwardIndexAggregatesPostings(t *testing.T) {
	dir := t.TempDir()
	seedForwardIndex(t, dir, []ForwardIndexRecord{
		{DocID: 1, WordIDs: []uint32{0, 1}},
		{DocID: 2, WordIDs: []uint32{1}},
		{DocID: 3, WordIDs: []uint32{0, 1, 2}},
	})

	acc, lengths, maxDocID, err := buildFromForwardIndex(dir)
	if err != nil {
		t.Fatalf("buildFromForwardIndex: %v", err)
	}
	if maxDocID != 3 {
		t.Fatalf("maxDocID = %d, want 3", maxDocID)
	}
	if lengths[1] != 2 || lengths[2] != 1 || lengths[3] != 3 {
		t.Fatalf("lengths = %v, want {1:2, 2:1, 3:3}", lengths)
	}

	word1Docs := acc.bitmaps[1].ToArray()
	want := []uint32{1, 2, 3}
	if !reflect.DeepEqual(word1Docs, want) {
		t.Fatalf("word_id 1 postings = %v, want %v", word1Docs, want)
	}
}

func TestWriteBarrelsAndPostingListRoundTrip(t *testing.T) {
	dir := t.TempDir()
	seedForwardIndex(t, dir, []ForwardIndexRecord{
		{DocID: 1, WordIDs: []uint32{0, 5, 12}},
		{DocID: 2, WordIDs: []uint32{5}},
		{DocID: 3, WordIDs: []uint32{12, 22}},
	})

	acc, _, _, err := buildFromForwardIndex(dir)
	if err != nil {
		t.Fatalf("buildFromForwardIndex: %v", err)
	}
	const numBarrels = 4
	if err := writeBarrels(dir, acc, numBarrels, nil); err != nil {
		t.Fatalf("writeBarrels: %v", err)
	}

	idx, err := openInvertedIndex(dir, numBarrels, nil)
	if err != nil {
		t.Fatalf("openInvertedIndex: %v", err)
	}
	defer idx.Close()

	tests := []struct {
		wordID uint32
		want   []uint32
	}{
		{0, []uint32{1}},
		{5, []uint32{1, 2}},
		{12, []uint32{1, 3}},
		{22, []uint32{3}},
	}
	for _, tt := range tests {
		got := idx.PostingList(tt.wordID)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PostingList(%d) = %v, want %v", tt.wordID, got, tt.want)
		}
		if df := idx.DocFrequency(tt.wordID); int(df) != len(tt.want) {
			t.Errorf("DocFrequency(%d) = %d, want %d", tt.wordID, df, len(tt.want))
		}
	}
}

func TestPostingListUnassignedWordIDIsEmpty(t *testing.T) {
	dir := t.TempDir()
	seedForwardIndex(t, dir, []ForwardIndexRecord{{DocID: 1, WordIDs: []uint32{0}}})

	acc, _, _, err := buildFromForwardIndex(dir)
	if err != nil {
		t.Fatalf("buildFromForwardIndex: %v", err)
	}
	if err := writeBarrels(dir, acc, 2, nil); err != nil {
		t.Fatalf("writeBarrels: %v", err)
	}

	idx, err := openInvertedIndex(dir, 2, nil)
	if err != nil {
		t.Fatalf("openInvertedIndex: %v", err)
	}
	defer idx.Close()

	if got := idx.PostingList(999); got != nil {
		t.Fatalf("PostingList(999) = %v, want nil", got)
	}
	if df := idx.DocFrequency(999); df != 0 {
		t.Fatalf("DocFrequency(999) = %d, want 0", df)
	}
}

func TestOffsetRecordIsEmpty(t *testing.T) {
	if !(OffsetRecord{}).IsEmpty() {
		t.Fatalf("zero-value OffsetRecord should be empty")
	}
	if (OffsetRecord{BarrelID: 3, Offset: 128, Count: 1}).IsEmpty() {
		t.Fatalf("non-zero count should not be empty")
	}
}
