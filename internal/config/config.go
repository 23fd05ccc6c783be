package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override.
const envPrefix = "EQUILIBRIUM_"

// ArticlesConfig locates the article store on disk.
type ArticlesConfig struct {
	MetadataPath string `yaml:"metadata_path" validate:"required"`
	ContentDir   string `yaml:"content_dir" validate:"required"`
	ReaderPath   string `yaml:"reader_path" validate:"required"`
}

// ModelConfig holds the vector space parameters.
type ModelConfig struct {
	MaxFeatures int      `yaml:"max_features" validate:"gte=1"`
	MinDF       float64  `yaml:"min_df" validate:"gte=0,lte=1,ltefield=MaxDF"`
	MaxDF       float64  `yaml:"max_df" validate:"gt=0,lte=1"`
	NGramMax    int      `yaml:"ngram_max" validate:"gte=1,lte=3"`
	Stem        bool     `yaml:"stem"`
	Stopwords   []string `yaml:"stopwords,omitempty"`
}

// SnapshotConfig sets where the fitted model is persisted.
type SnapshotConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// UIConfig sizes the result lists of the terminal UI.
type UIConfig struct {
	Recommendations int `yaml:"recommendations" validate:"gte=1"`
	SearchResults   int `yaml:"search_results" validate:"gte=1"`
	TeaserWidth     int `yaml:"teaser_width" validate:"gte=10"`
}

// LoggingConfig selects the log level and destination. File "-" logs to stderr.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Articles ArticlesConfig `yaml:"articles"`
	Model    ModelConfig    `yaml:"model"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	UI       UIConfig       `yaml:"ui"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	// keys left out of the file keep their defaults
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/equilibrium/config.yaml.
// If neither exists, it writes defaults to ~/.config/equilibrium/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides paths and the log level from EQUILIBRIUM_* variables.
func (c *AppConfig) ApplyEnv() error {
	for name, dst := range map[string]*string{
		"METADATA":     &c.Articles.MetadataPath,
		"CONTENT_DIR":  &c.Articles.ContentDir,
		"READER":       &c.Articles.ReaderPath,
		"SNAPSHOT_DIR": &c.Snapshot.Dir,
		"LOG_LEVEL":    &c.Logging.Level,
		"LOG_FILE":     &c.Logging.File,
	} {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "STEM"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTEM: %w", envPrefix, err)
		}
		c.Model.Stem = b
	}
	return nil
}

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate rejects values the application cannot run with, such as min_df
// above max_df or an empty metadata path.
func (c *AppConfig) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s %s", fieldPath(fe), describeRule(fe)))
	}
	return errors.Join(errs...)
}

// fieldPath drops the root type from the validator namespace, giving
// paths like model.min_df.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "ltefield":
		return "must not exceed max_df"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation (value %v)", fe.Tag(), fe.Value())
	}
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "equilibrium", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Articles: ArticlesConfig{MetadataPath: "data/articles.csv", ContentDir: "data/articles", ReaderPath: "data/reader.csv"},
		Model:    ModelConfig{MaxFeatures: 1000, MinDF: 0.003, MaxDF: 0.5, NGramMax: 2},
		Snapshot: SnapshotConfig{Dir: "data/model"},
		UI:       UIConfig{Recommendations: 5, SearchResults: 10, TeaserWidth: 72},
		Logging:  LoggingConfig{Level: "info", File: "equilibrium.log"},
	}
	return cfg
}
