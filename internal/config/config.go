package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"dyncal/internal/datefmt"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
	"dyncal/internal/remote"
)

// EnvPrefix prefixes every environment override, e.g. DYNCAL_LISTEN.
const EnvPrefix = "DYNCAL_"

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL string `yaml:"url" toml:"url" json:"url"`
	// ID is used for logging and as the event source tag.
	ID   string `yaml:"id" toml:"id" json:"id"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web UI and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// EventConfig is a static event listed in the config file. Either Date or
// DayOfWeek should be set.
type EventConfig struct {
	ID          string `yaml:"id,omitempty" toml:"id,omitempty" json:"id,omitempty"`
	Date        string `yaml:"date,omitempty" toml:"date,omitempty" json:"date,omitempty"`
	DateFormat  string `yaml:"date_format,omitempty" toml:"date_format,omitempty" json:"date_format,omitempty"`
	DayOfWeek   string `yaml:"day_of_week,omitempty" toml:"day_of_week,omitempty" json:"day_of_week,omitempty"`
	StartTime   string `yaml:"start_time,omitempty" toml:"start_time,omitempty" json:"start_time,omitempty"`
	EndTime     string `yaml:"end_time,omitempty" toml:"end_time,omitempty" json:"end_time,omitempty"`
	Title       string `yaml:"title" toml:"title" json:"title"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Color       string `yaml:"color,omitempty" toml:"color,omitempty" json:"color,omitempty"`
}

func (e EventConfig) Input() model.InputEvent {
	return model.InputEvent{
		ID:          e.ID,
		Date:        e.Date,
		DateFormat:  e.DateFormat,
		DayOfWeek:   e.DayOfWeek,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
}

// SnapshotConfig controls the headless-browser PNG snapshot of the month
// page.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled" env:"ENABLED"`
	// URL defaults to the local /calendar page.
	URL    string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty" env:"URL"`
	Output string `yaml:"output,omitempty" toml:"output,omitempty" json:"output,omitempty" env:"OUTPUT"`
	Width  int    `yaml:"width" toml:"width" json:"width" env:"WIDTH"`
	Height int    `yaml:"height" toml:"height" json:"height" env:"HEIGHT"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web UI and API.
	Listen string `yaml:"listen" toml:"listen" json:"listen" env:"LISTEN"`

	// Timezone is the IANA zone "today" is computed in.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone" env:"TIMEZONE"`

	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level" env:"LOG_LEVEL"`

	// APIBaseURL is the schedule API root.
	APIBaseURL string `yaml:"api_base_url" toml:"api_base_url" json:"api_base_url" env:"API_BASE_URL"`

	TokenPath string `yaml:"token_path" toml:"token_path" json:"token_path" env:"TOKEN_PATH"`
	CacheDir  string `yaml:"cache_dir" toml:"cache_dir" json:"cache_dir" env:"CACHE_DIR"`

	// RefreshCron is a cron spec (e.g. "*/15 * * * *") for re-fetching
	// remote events.
	RefreshCron string `yaml:"refresh" toml:"refresh" json:"refresh" env:"REFRESH"`

	// DateFormat is the layout of date-anchored events that carry no
	// format tag: "dmy", "mdy" or "iso".
	DateFormat string `yaml:"date_format" toml:"date_format" json:"date_format" env:"DATE_FORMAT"`

	ICS    []ICSConfig   `yaml:"ics" toml:"ics" json:"ics"`
	Events []EventConfig `yaml:"events,omitempty" toml:"events,omitempty" json:"events,omitempty"`

	// StudySubjects feeds the study schedule wizard.
	StudySubjects []string `yaml:"study_subjects" toml:"study_subjects" json:"study_subjects" env:"STUDY_SUBJECTS" envSeparator:","`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Snapshot SnapshotConfig `yaml:"snapshot" toml:"snapshot" json:"snapshot" envPrefix:"SNAPSHOT_"`
}

// DefaultDir is the directory holding the token and the fetch cache.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "dyncal")
	}
	return ".dyncal"
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	dir := DefaultDir()
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "America/Sao_Paulo",
		LogLevel:      "info",
		APIBaseURL:    remote.DefaultBaseURL,
		TokenPath:     filepath.Join(dir, "token"),
		CacheDir:      filepath.Join(dir, "cache"),
		RefreshCron:   "*/15 * * * *",
		DateFormat:    "dmy",
		ICS:           []ICSConfig{},
		StudySubjects: []string{"Matemática", "Português", "História", "Geografia", "Física", "Química", "Biologia"},
		Snapshot: SnapshotConfig{
			Width:  800,
			Height: 480,
		},
	}
}

// Normalize fills in missing values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = def.APIBaseURL
	}
	if c.TokenPath == "" {
		c.TokenPath = def.TokenPath
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.DateFormat == "" {
		c.DateFormat = def.DateFormat
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i)
		}
	}
	if len(c.StudySubjects) == 0 {
		c.StudySubjects = def.StudySubjects
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = def.Snapshot.Width
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = def.Snapshot.Height
	}
	if c.Snapshot.URL == "" {
		c.Snapshot.URL = c.defaultSnapshotURL()
	}
	if c.Snapshot.Output == "" {
		c.Snapshot.Output = c.defaultSnapshotOutput()
	}
}

func (c *Config) defaultSnapshotURL() string {
	return "http://" + c.Listen + "/calendar"
}

func (c *Config) defaultSnapshotOutput() string {
	return filepath.Join(c.CacheDir, "preview.png")
}

// withoutDerived returns a normalized copy of c with the snapshot fields
// that only repeat their derived defaults left empty, so they follow
// listen and cache_dir when those are edited later.
func (c *Config) withoutDerived() *Config {
	out := *c
	out.ICS = append([]ICSConfig(nil), c.ICS...)
	out.Normalize()
	if out.Snapshot.URL == out.defaultSnapshotURL() {
		out.Snapshot.URL = ""
	}
	if out.Snapshot.Output == out.defaultSnapshotOutput() {
		out.Snapshot.Output = ""
	}
	return &out
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if _, err := datefmt.ParseLayout(c.DateFormat); err != nil {
		errs = append(errs, fmt.Errorf("date_format: %w", err))
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		errs = append(errs, errors.New("basic_auth: username is empty"))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Layout resolves DateFormat, falling back to DD/MM/YYYY.
func (c *Config) Layout() datefmt.Layout {
	l, err := datefmt.ParseLayout(c.DateFormat)
	if err != nil {
		return datefmt.DMY
	}
	return l
}

// StaticEvents returns the configured events as input events.
func (c *Config) StaticEvents() []model.InputEvent {
	out := make([]model.InputEvent, 0, len(c.Events))
	for _, e := range c.Events {
		out = append(out, e.Input())
	}
	return out
}

// Load loads configuration from path, YAML unless the extension is .toml.
//
// On first run the file does not exist: a default config is written with
// 0600 permissions and returned. DYNCAL_* environment variables are applied
// on top of the file, then defaults fill the gaps.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		appLog.Info("wrote default config", "path", path)
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides cfg with DYNCAL_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if isTOML(path) {
		return toml.Marshal(cfg)
	}
	return yaml.Marshal(cfg)
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed. cfg itself is not
// modified.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := marshal(path, cfg.withoutDerived())
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dyncal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
