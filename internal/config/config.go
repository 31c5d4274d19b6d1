// Package config loads the layered shmt configuration.
//
// Files are JSONC (comments and trailing commas allowed). Precedence, lowest
// first: defaults, the global user file, the project file (.shmt.json) or an
// explicit -c file, then command-line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/shmtable/internal/logging"
	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// Errors.
var (
	ErrConfigInvalid      = errors.New("invalid config")
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrSegmentEmpty       = errors.New("segment cannot be empty")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".shmt.json"

// Config is the resolved configuration.
type Config struct {
	Segment   string `json:"segment"`
	KeySize   int    `json:"key_size"`
	ValueSize int    `json:"value_size"`
	Capacity  int    `json:"capacity"`
	Hash      string `json:"hash"`
	LRU       bool   `json:"lru"`
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file,omitempty"`

	// Resolved (computed, not serialized).
	EffectiveCwd string  `json:"-"`
	SegmentAbs   string  `json:"-"`
	LogFileAbs   string  `json:"-"`
	Sources      Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Layer is one partial source. Nil fields leave lower layers untouched, so a
// file can set "lru": false over a global true.
type Layer struct {
	Segment   *string `json:"segment"`
	KeySize   *int    `json:"key_size"`
	ValueSize *int    `json:"value_size"`
	Capacity  *int    `json:"capacity"`
	Hash      *string `json:"hash"`
	LRU       *bool   `json:"lru"`
	LogLevel  *string `json:"log_level"`
	LogFile   *string `json:"log_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Segment:   ".shmt/table.shm",
		KeySize:   16,
		ValueSize: 64,
		Capacity:  1024,
		Hash:      ordhash.HashFNV1a.String(),
		LogLevel:  "warn",
	}
}

// Input holds the inputs for [Load].
type Input struct {
	WorkDirOverride string            // -C/--cwd; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config
	Overrides       Layer             // command-line flags
	Env             map[string]string // environment variables
}

// Load resolves the configuration. All paths in the result are absolute.
func Load(input Input) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolving working directory: %w", err)
	}

	cfg := Default()

	globalLayer, globalPath, err := loadGlobal(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = merge(cfg, globalLayer)

	projectLayer, projectPath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectLayer)

	cfg = merge(cfg, input.Overrides)

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.SegmentAbs = resolve(workDir, cfg.Segment)

	if cfg.LogFile != "" {
		cfg.LogFileAbs = resolve(workDir, cfg.LogFile)
	}

	return cfg, nil
}

// TableOptions returns the table geometry described by cfg.
func (cfg Config) TableOptions() ordhash.Options {
	alg, _ := ordhash.ParseHashAlg(cfg.Hash)

	return ordhash.Options{
		KeySize:   cfg.KeySize,
		ValueSize: cfg.ValueSize,
		Capacity:  cfg.Capacity,
		Hash:      alg,
	}
}

// Format renders cfg as key=value lines in a stable order.
func Format(cfg Config) string {
	var b strings.Builder

	line := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}

	line("effective_cwd", cfg.EffectiveCwd)
	line("segment", cfg.SegmentAbs)
	line("key_size", strconv.Itoa(cfg.KeySize))
	line("value_size", strconv.Itoa(cfg.ValueSize))
	line("capacity", strconv.Itoa(cfg.Capacity))
	line("hash", cfg.Hash)
	line("lru", strconv.FormatBool(cfg.LRU))
	line("log_level", cfg.LogLevel)

	if cfg.LogFileAbs != "" {
		line("log_file", cfg.LogFileAbs)
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// globalPath returns $XDG_CONFIG_HOME/shmt/config.json, falling back to
// ~/.config/shmt/config.json. Empty if neither variable is set.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "shmt", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "shmt", "config.json")
	}

	return ""
}

func loadGlobal(env map[string]string) (Layer, string, error) {
	path := globalPath(env)
	if path == "" {
		return Layer{}, "", nil
	}

	layer, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return Layer{}, "", err
	}

	return layer, path, nil
}

func loadProject(workDir, configPath string) (Layer, string, error) {
	path := filepath.Join(workDir, FileName)
	mustExist := false

	if configPath != "" {
		path = resolve(workDir, configPath)
		mustExist = true

		_, statErr := os.Stat(path)
		if statErr != nil {
			return Layer{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	}

	layer, loaded, err := loadFile(path, mustExist)
	if err != nil || !loaded {
		return Layer{}, "", err
	}

	return layer, path, nil
}

// loadFile reads one layer. A missing optional file yields loaded == false.
func loadFile(path string, mustExist bool) (Layer, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if mustExist {
			return Layer{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Layer{}, false, nil
	}

	layer, err := parse(data)
	if err != nil {
		return Layer{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if layer.Segment != nil && *layer.Segment == "" {
		return Layer{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrSegmentEmpty)
	}

	return layer, true, nil
}

func parse(data []byte) (Layer, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Layer{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var layer Layer

	err = dec.Decode(&layer)
	if err != nil {
		return Layer{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return layer, nil
}

func merge(base Config, overlay Layer) Config {
	if overlay.Segment != nil {
		base.Segment = *overlay.Segment
	}

	if overlay.KeySize != nil {
		base.KeySize = *overlay.KeySize
	}

	if overlay.ValueSize != nil {
		base.ValueSize = *overlay.ValueSize
	}

	if overlay.Capacity != nil {
		base.Capacity = *overlay.Capacity
	}

	if overlay.Hash != nil {
		base.Hash = *overlay.Hash
	}

	if overlay.LRU != nil {
		base.LRU = *overlay.LRU
	}

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	if overlay.LogFile != nil {
		base.LogFile = *overlay.LogFile
	}

	return base
}

func validate(cfg Config) error {
	if cfg.Segment == "" {
		return ErrSegmentEmpty
	}

	_, err := ordhash.ParseHashAlg(cfg.Hash)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	_, err = ordhash.RegionSize(cfg.TableOptions())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	_, err = logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return nil
}

func resolve(workDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(workDir, p)
}
