package veridia

import "testing"

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	t.Setenv("VERIDIA_NUM_BARRELS", "17")
	t.Setenv("VERIDIA_MIN_WORD_LENGTH", "5")
	t.Setenv("VERIDIA_MAX_RESULTS", "9")

	cfg := LoadConfig("/tmp/does-not-matter")
	if cfg.NumBarrels != 17 {
		t.Errorf("NumBarrels = %d, want 17", cfg.NumBarrels)
	}
	if cfg.MinWordLength != 5 {
		t.Errorf("MinWordLength = %d, want 5", cfg.MinWordLength)
	}
	if cfg.MaxResults != 9 {
		t.Errorf("MaxResults = %d, want 9", cfg.MaxResults)
	}
}

func TestLoadConfigAppliesUseDiskLexiconOverride(t *testing.T) {
	t.Setenv("VERIDIA_USE_DISK_LEXICON", "true")
	cfg := LoadConfig("/tmp/does-not-matter")
	if !cfg.UseDiskLexicon {
		t.Fatalf("UseDiskLexicon = false, want true")
	}
}

func TestLoadConfigDefaultsWhenUnset(t *testing.T) {
	cfg := LoadConfig("/tmp/does-not-matter")
	def := DefaultConfig("/tmp/does-not-matter")
	if cfg != def {
		t.Fatalf("LoadConfig() with no env vars = %+v, want defaults %+v", cfg, def)
	}
}
