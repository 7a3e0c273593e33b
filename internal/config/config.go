package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes environment variable overrides.
const EnvPrefix = "IMEHOST_"

// Config is the full settings file.
type Config struct {
	Keyboard KeyboardConfig `toml:"keyboard"`
	Engines  EnginesConfig  `toml:"engines"`
	Layouts  LayoutsConfig  `toml:"layouts"`
	Log      LogConfig      `toml:"log"`
}

// KeyboardConfig holds the user's typing preferences.
type KeyboardConfig struct {
	Suggestions      bool `toml:"suggestions"`
	Corrections      bool `toml:"corrections"`
	CandidatesPerRow int  `toml:"candidates_per_row"`
}

// EnginesConfig locates engine scripts and their resources.
type EnginesConfig struct {
	Dir string `toml:"dir"`
}

// LayoutsConfig locates the layout definitions.
type LayoutsConfig struct {
	File    string `toml:"file"`
	Default string `toml:"default"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// IMESettings is the part of the configuration engines see on activation.
type IMESettings struct {
	SuggestionsEnabled bool
	CorrectionsEnabled bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Keyboard: KeyboardConfig{
			Suggestions:      true,
			Corrections:      true,
			CandidatesPerRow: 4,
		},
		Engines: EnginesConfig{Dir: "imes"},
		Layouts: LayoutsConfig{File: "layouts.yaml"},
		Log:     LogConfig{Level: "info"},
	}
}

// IME returns the engine-facing settings.
func (c Config) IME() IMESettings {
	return IMESettings{
		SuggestionsEnabled: c.Keyboard.Suggestions,
		CorrectionsEnabled: c.Keyboard.Corrections,
	}
}

// Validate checks setting ranges.
func (c Config) Validate() error {
	if c.Keyboard.CandidatesPerRow < 1 || c.Keyboard.CandidatesPerRow > 16 {
		return fmt.Errorf("%w: keyboard.candidates_per_row = %d", ErrInvalidValue, c.Keyboard.CandidatesPerRow)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level = %q", ErrInvalidValue, c.Log.Level)
	}
	return nil
}

// Parse decodes TOML data on top of the defaults. source names the data in
// errors.
func Parse(source string, data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return Config{}, perr
	}
	return cfg, nil
}

// Load reads the settings file at path. A missing file yields the defaults.
// Environment overrides are applied, taken from the process environment or
// from a .env file beside the settings file, and relative paths are resolved
// against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = Parse(path, data)
		if err != nil {
			return Config{}, err
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	lookup, err := envLookup(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// EnvOverrides lists the supported environment variables and the keys they
// override.
var EnvOverrides = map[string]string{
	EnvPrefix + "SUGGESTIONS":        "keyboard.suggestions",
	EnvPrefix + "CORRECTIONS":        "keyboard.corrections",
	EnvPrefix + "CANDIDATES_PER_ROW": "keyboard.candidates_per_row",
	EnvPrefix + "ENGINES_DIR":        "engines.dir",
	EnvPrefix + "LOG_LEVEL":          "log.level",
	EnvPrefix + "LOG_FILE":           "log.file",
}

// envLookup reads variables from the process environment first and then
// from the dotenv file at path. A missing file is ignored.
func envLookup(path string) (func(string) (string, bool), error) {
	dotenv, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return os.LookupEnv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for env, key := range EnvOverrides {
		val, ok := lookup(env)
		if !ok {
			continue
		}

		var err error
		switch key {
		case "keyboard.suggestions":
			c.Keyboard.Suggestions, err = strconv.ParseBool(val)
		case "keyboard.corrections":
			c.Keyboard.Corrections, err = strconv.ParseBool(val)
		case "keyboard.candidates_per_row":
			c.Keyboard.CandidatesPerRow, err = strconv.Atoi(val)
		case "engines.dir":
			c.Engines.Dir = val
		case "log.level":
			c.Log.Level = val
		case "log.file":
			c.Log.File = val
		}
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, env, val)
		}
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Engines.Dir = resolve(c.Engines.Dir)
	c.Layouts.File = resolve(c.Layouts.File)
	c.Log.File = resolve(c.Log.File)
}
