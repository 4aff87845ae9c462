package veridia

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLexiconInternIsIdempotentAndAssignsSequentialIDs(t *testing.T) {
	lex, err := openLexicon(t.TempDir())
	if err != nil {
		t.Fatalf("openLexicon: %v", err)
	}
	defer lex.Close()

	foxID := lex.Intern("fox")
	dogID := lex.Intern("dog")
	again := lex.Intern("fox")

	if foxID != 0 || dogID != 1 {
		t.Fatalf("got fox=%d dog=%d, want fox=0 dog=1", foxID, dogID)
	}
	if again != foxID {
		t.Fatalf("re-intern(fox) = %d, want %d", again, foxID)
	}
	if lex.NextWordID() != 2 {
		t.Fatalf("NextWordID() = %d, want 2", lex.NextWordID())
	}
}

func TestLexiconGetIDUnknownSurface(t *testing.T) {
	lex, err := openLexicon(t.TempDir())
	if err != nil {
		t.Fatalf("openLexicon: %v", err)
	}
	defer lex.Close()

	if _, err := lex.GetID("missing"); err == nil {
		t.Fatalf("GetID(missing) succeeded, want ErrNotInLexicon")
	}
}

func TestLexiconLoadsExistingText(t *testing.T) {
	dir := t.TempDir()
	content := "ant\t0\nfox\t1\n"
	if err := os.WriteFile(filepath.Join(dir, lexiconFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("seeding lexicon.txt: %v", err)
	}

	lex, err := openLexicon(dir)
	if err != nil {
		t.Fatalf("openLexicon: %v", err)
	}
	defer lex.Close()

	if id, err := lex.GetID("fox"); err != nil || id != 1 {
		t.Fatalf("GetID(fox) = (%d, %v), want (1, nil)", id, err)
	}
	if lex.NextWordID() != 2 {
		t.Fatalf("NextWordID() = %d, want 2", lex.NextWordID())
	}
}

func TestAppendLexiconTextWritesSortedNewSurfaces(t *testing.T) {
	dir := t.TempDir()
	if err := AppendLexiconText(dir, map[string]uint32{"fox": 0, "ant": 1}); err != nil {
		t.Fatalf("AppendLexiconText: %v", err)
	}

	lex, err := openLexicon(dir)
	if err != nil {
		t.Fatalf("openLexicon: %v", err)
	}
	defer lex.Close()

	if id, err := lex.GetID("ant"); err != nil || id != 1 {
		t.Fatalf("GetID(ant) = (%d, %v), want (1, nil)", id, err)
	}
	if id, err := lex.GetID("fox"); err != nil || id != 0 {
		t.Fatalf("GetID(fox) = (%d, %v), want (0, nil)", id, err)
	}
}

func TestOpenDiskLexiconInternGetAndPrefixScan(t *testing.T) {
	dir := t.TempDir()
	lex, err := openDiskLexicon(dir)
	if err != nil {
		t.Fatalf("openDiskLexicon: %v", err)
	}
	defer lex.Close()

	foxID := lex.Intern("fox")
	lex.Intern("foxes")
	lex.Intern("dog")

	if id, err := lex.GetID("fox"); err != nil || id != foxID {
		t.Fatalf("GetID(fox) = (%d, %v), want (%d, nil)", id, err, foxID)
	}
	if _, err := lex.GetID("missing"); err == nil {
		t.Fatalf("GetID(missing) succeeded, want ErrNotInLexicon")
	}

	got := lex.PrefixScan("fox", 10)
	want := []string{"fox", "foxes"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("PrefixScan(fox) = %v, want %v", got, want)
	}

	// Re-interning must not reassign an existing word_id.
	if again := lex.Intern("fox"); again != foxID {
		t.Fatalf("re-intern(fox) = %d, want %d", again, foxID)
	}
}

func TestOpenLexiconForConfigSelectsBackend(t *testing.T) {
	memCfg := DefaultConfig(t.TempDir())
	memLex, err := openLexiconForConfig(memCfg)
	if err != nil {
		t.Fatalf("openLexiconForConfig (memory): %v", err)
	}
	defer memLex.Close()
	if _, ok := memLex.backend.(*memoryLexiconBackend); !ok {
		t.Fatalf("default Config selected backend %T, want *memoryLexiconBackend", memLex.backend)
	}

	diskCfg := DefaultConfig(t.TempDir())
	diskCfg.UseDiskLexicon = true
	diskLex, err := openLexiconForConfig(diskCfg)
	if err != nil {
		t.Fatalf("openLexiconForConfig (disk): %v", err)
	}
	defer diskLex.Close()
	if _, ok := diskLex.backend.(*boltLexiconBackend); !ok {
		t.Fatalf("UseDiskLexicon selected backend %T, want *boltLexiconBackend", diskLex.backend)
	}
}

func TestAppendLexiconTextNoOpOnEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := AppendLexiconText(dir, nil); err != nil {
		t.Fatalf("AppendLexiconText(nil): %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, lexiconFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected no lexicon.txt to be created for an empty surface set")
	}
}
