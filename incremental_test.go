package veridia

import "testing"

func TestAddDocumentsPreservesPriorIDsAndExtendsPostings(t *testing.T) {
	engine, _ := buildTestEngine(t)

	stats, err := engine.AddDocuments([]IncomingDocument{
		{Title: "quick algorithms"},
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if stats.DocumentsAdded != 1 {
		t.Fatalf("DocumentsAdded = %d, want 1", stats.DocumentsAdded)
	}
	if stats.NewWords != 1 {
		t.Fatalf("NewWords = %d, want 1 (only 'algorithms' is new)", stats.NewWords)
	}

	algoID, err := engine.lexicon.GetID("algorithms")
	if err != nil {
		t.Fatalf("GetID(algorithms): %v", err)
	}
	if algoID != 5 {
		t.Fatalf("algorithms word_id = %d, want 5 (next after quick,brown,fox,foxes,jump)", algoID)
	}

	quickID, err := engine.lexicon.GetID("quick")
	if err != nil {
		t.Fatalf("GetID(quick): %v", err)
	}
	got := engine.inverted.PostingList(quickID)
	want := []uint32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("PostingList(quick) = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("PostingList(quick) = %v, want %v", got, want)
		}
	}

	// Previously-assigned ids/postings must be unchanged.
	foxID, err := engine.lexicon.GetID("fox")
	if err != nil {
		t.Fatalf("GetID(fox): %v", err)
	}
	if foxID != 2 {
		t.Fatalf("fox word_id changed to %d, want 2", foxID)
	}
	foxPostings := engine.inverted.PostingList(foxID)
	if len(foxPostings) != 1 || foxPostings[0] != 1 {
		t.Fatalf("PostingList(fox) = %v, want [1]", foxPostings)
	}
}

func TestAddDocumentsThenAutocompleteSeesNewSurface(t *testing.T) {
	engine, _ := buildTestEngine(t)

	if _, err := engine.AddDocuments([]IncomingDocument{{Title: "quick algorithms"}}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	got := engine.Suggest("a")
	if len(got) != 1 || got[0] != "algorithms" {
		t.Fatalf("Suggest(a) = %v, want [algorithms]", got)
	}
}

func TestAddDocumentsContentIsRetrievable(t *testing.T) {
	engine, _ := buildTestEngine(t)

	if _, err := engine.AddDocuments([]IncomingDocument{{Title: "quick algorithms", Body: "sorting and searching"}}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}

	rec, err := engine.Content(3)
	if err != nil {
		t.Fatalf("Content(3): %v", err)
	}
	if rec.Title != "quick algorithms" {
		t.Fatalf("Content(3).Title = %q, want %q", rec.Title, "quick algorithms")
	}
}
