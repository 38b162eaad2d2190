// Package config loads the server configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/alimasry/go-docops/list"
	"github.com/alimasry/go-docops/sheet"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
)

// Config is the server configuration. Zero fields take the defaults of
// Default.
type Config struct {
	Addr    string  `yaml:"addr"`
	Store   Store   `yaml:"store"`
	Session Session `yaml:"session"`
	Engine  Engine  `yaml:"engine"`
	Log     Log     `yaml:"log"`
}

type Store struct {
	Backend          string        `yaml:"backend"`
	FirestoreProject string        `yaml:"firestoreProject"`
	CredentialsFile  string        `yaml:"credentialsFile"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
}

type Session struct {
	CompactEvery int     `yaml:"compactEvery"`
	OpsPerSecond float64 `yaml:"opsPerSecond"`
	Burst        int     `yaml:"burst"`
}

type Engine struct {
	// ListPolicy is "inline" or "inherit".
	ListPolicy      string `yaml:"listPolicy"`
	MaxSheetRows    int    `yaml:"maxSheetRows"`
	MaxSheetColumns int    `yaml:"maxSheetColumns"`
}

type Log struct {
	Verbosity int `yaml:"verbosity"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr: ":8080",
		Store: Store{
			Backend:       BackendMemory,
			FlushInterval: 5 * time.Second,
		},
		Session: Session{
			CompactEvery: 100,
			OpsPerSecond: 50,
			Burst:        200,
		},
		Engine: Engine{
			ListPolicy:      string(list.PolicyInline),
			MaxSheetRows:    sheet.DefaultLimits.Rows,
			MaxSheetColumns: sheet.DefaultLimits.Cols,
		},
	}
}

// Load reads a YAML configuration on top of the defaults and validates it.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads the configuration file at path. An empty path yields the
// defaults.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs error
	if c.Addr == "" {
		errs = multierr.Append(errs, errors.New("addr is empty"))
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFirestore:
		if c.Store.FirestoreProject == "" {
			errs = multierr.Append(errs, errors.New("store.firestoreProject is required for the firestore backend"))
		}
		if c.Store.FlushInterval <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("store.flushInterval must be positive, got %s", c.Store.FlushInterval))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("store.backend %q is not %s or %s", c.Store.Backend, BackendMemory, BackendFirestore))
	}
	if c.Session.CompactEvery < 0 {
		errs = multierr.Append(errs, fmt.Errorf("session.compactEvery must not be negative, got %d", c.Session.CompactEvery))
	}
	if c.Session.OpsPerSecond < 0 || c.Session.Burst < 0 {
		errs = multierr.Append(errs, errors.New("session rate limits must not be negative"))
	}
	if _, err := list.ParsePolicy(c.Engine.ListPolicy); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engine.listPolicy: %w", err))
	}
	if c.Engine.MaxSheetRows <= 0 || c.Engine.MaxSheetColumns <= 0 {
		errs = multierr.Append(errs, errors.New("engine sheet limits must be positive"))
	}
	return errs
}

// ListPolicy returns the parsed list policy. It assumes a validated config.
func (c Config) ListPolicy() list.Policy {
	p, _ := list.ParsePolicy(c.Engine.ListPolicy)
	return p
}

// SheetLimits returns the configured sheet bounds.
func (c Config) SheetLimits() sheet.Limits {
	return sheet.Limits{Rows: c.Engine.MaxSheetRows, Cols: c.Engine.MaxSheetColumns}
}
