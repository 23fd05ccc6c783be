package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, defaultConfig()) {
		t.Errorf("Load = %+v, want defaults", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "model:\n  max_features: 50\n  stem: true\n  stopwords: [foo]\nsnapshot:\n  dir: /tmp/snap\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.MaxFeatures != 50 || !cfg.Model.Stem || !reflect.DeepEqual(cfg.Model.Stopwords, []string{"foo"}) {
		t.Errorf("Model = %+v", cfg.Model)
	}
	if cfg.Model.MaxDF != 0.5 || cfg.Model.NGramMax != 2 {
		t.Errorf("defaults not applied: %+v", cfg.Model)
	}
	if cfg.Snapshot.Dir != "/tmp/snap" || cfg.Articles.MetadataPath != "data/articles.csv" {
		t.Errorf("paths = %q, %q", cfg.Snapshot.Dir, cfg.Articles.MetadataPath)
	}
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model:\n  max_features: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	def := defaultConfig()
	if cfg.Model.MinDF != def.Model.MinDF || cfg.Model.MaxDF != def.Model.MaxDF {
		t.Errorf("min_df, max_df = %v, %v; want %v, %v", cfg.Model.MinDF, cfg.Model.MaxDF, def.Model.MinDF, def.Model.MaxDF)
	}
	if cfg.Articles.ReaderPath != def.Articles.ReaderPath {
		t.Errorf("reader_path = %q, want %q", cfg.Articles.ReaderPath, def.Articles.ReaderPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed yaml")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := defaultConfig()
	want.UI.Recommendations = 3
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load after Save = %+v, want %+v", got, want)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EQUILIBRIUM_SNAPSHOT_DIR", "/srv/model")
	t.Setenv("EQUILIBRIUM_LOG_LEVEL", "debug")
	t.Setenv("EQUILIBRIUM_STEM", "true")
	cfg := defaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Snapshot.Dir != "/srv/model" || cfg.Logging.Level != "debug" || !cfg.Model.Stem {
		t.Errorf("ApplyEnv = %+v", cfg)
	}

	t.Setenv("EQUILIBRIUM_STEM", "sometimes")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("ApplyEnv accepted a bad boolean")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"max features", func(c *AppConfig) { c.Model.MaxFeatures = 0 }},
		{"min df negative", func(c *AppConfig) { c.Model.MinDF = -0.1 }},
		{"max df above one", func(c *AppConfig) { c.Model.MaxDF = 1.5 }},
		{"min above max", func(c *AppConfig) { c.Model.MinDF, c.Model.MaxDF = 0.6, 0.4 }},
		{"ngram", func(c *AppConfig) { c.Model.NGramMax = 0 }},
		{"metadata path", func(c *AppConfig) { c.Articles.MetadataPath = "" }},
		{"reader path", func(c *AppConfig) { c.Articles.ReaderPath = "" }},
		{"log level", func(c *AppConfig) { c.Logging.Level = "chatty" }},
		{"teaser width", func(c *AppConfig) { c.UI.TeaserWidth = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidateNamesYAMLFields(t *testing.T) {
	cfg := defaultConfig()
	cfg.Model.MinDF, cfg.Model.MaxDF = 0.6, 0.4
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if want := "model.min_df must not exceed max_df"; !strings.Contains(err.Error(), want) {
		t.Errorf("Validate() = %q, want it to mention %q", err, want)
	}
}
