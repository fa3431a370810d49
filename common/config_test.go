package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadVoiceTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	yaml := `
Narrator:
  name: en-US-Neural2-J
  language_code: en-US
  speaking_rate: 0.95
MALE_DEFAULT:
  name: en-US-Neural2-D
  language_code: en-US
  pitch: -2.0
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	table := LoadVoiceTable(path)
	if len(table) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(table))
	}
	// Keys are normalized to lower case.
	narrator, ok := table["narrator"]
	if !ok {
		t.Fatal("narrator profile missing")
	}
	if narrator.Name != "en-US-Neural2-J" || narrator.SpeakingRate != 0.95 {
		t.Errorf("unexpected narrator profile %+v", narrator)
	}
	if profile, ok := table["male_default"]; !ok || profile.Pitch != -2.0 {
		t.Errorf("uppercase key was not normalized, table: %+v", table)
	}
}

func TestLoadVoiceTableMissingFile(t *testing.T) {
	table := LoadVoiceTable(filepath.Join(t.TempDir(), "missing.yaml"))
	if len(table) != 0 {
		t.Errorf("missing file should yield an empty table, got %+v", table)
	}
}

func TestLoadVoiceTableUnparsable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	os.WriteFile(path, []byte("{{{not yaml"), 0644)
	if table := LoadVoiceTable(path); len(table) != 0 {
		t.Errorf("unparsable file should yield an empty table, got %+v", table)
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := PipelineConfig{InputData: "once upon a time", OutputDir: "out"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.InputType != InputText {
		t.Errorf("empty input type should default to text, got %q", cfg.InputType)
	}
	if cfg.WordBudget != DefaultWordBudget {
		t.Errorf("word budget should default to %d, got %d", DefaultWordBudget, cfg.WordBudget)
	}
	if cfg.MotionEffect != "random" {
		t.Errorf("motion effect should default to random, got %q", cfg.MotionEffect)
	}
}

func TestValidateRejects(t *testing.T) {
	noInput := PipelineConfig{OutputDir: "out"}
	if err := noInput.Validate(); err == nil {
		t.Error("empty input must be rejected")
	}

	badType := PipelineConfig{InputData: "x", OutputDir: "out", InputType: "carrier-pigeon"}
	if err := badType.Validate(); err == nil {
		t.Error("unknown input type must be rejected")
	}

	noOutput := PipelineConfig{InputData: "x"}
	if err := noOutput.Validate(); err == nil {
		t.Error("missing output dir must be rejected")
	}
}
