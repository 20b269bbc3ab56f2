package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/openaerial/visnav/logging"
)

// Environment variables that override file settings.
const (
	EnvLogLevel = "VISNAV_LOG_LEVEL"
	EnvHz       = "VISNAV_HZ"
	EnvMaxTicks = "VISNAV_MAX_TICKS"
	EnvMap      = "VISNAV_MAP"
	EnvLandmark = "VISNAV_LANDMARK"
)

// Read reads a config from the given file. ${VAR} references in the file are expanded from the
// environment before parsing, then the VISNAV_* overrides apply.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", filePath)
	}
	return FromReader(filePath, bytes.NewReader(buf), os.LookupEnv)
}

// FromReader reads a config from r. Settings missing from the input keep their defaults; the
// default waypoints only apply when the input names no route at all. originalPath is only used
// for error messages and may be empty.
func FromReader(originalPath string, r io.Reader, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	defaultWaypoints := cfg.Navigation.Waypoints
	// decoding merges into existing slice elements, so start from an empty list
	cfg.Navigation.Waypoints = nil
	cfg.ConfigFilePath = originalPath

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config %q from json", originalPath)
	}
	nav := &cfg.Navigation
	if len(nav.Waypoints) == 0 && len(nav.Route) == 0 && nav.PopularRoute == "" {
		nav.Waypoints = defaultWaypoints
	}

	if lookupEnv != nil {
		if err := ApplyEnv(cfg, lookupEnv); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the VISNAV_* variables found by lookupEnv.
func ApplyEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	var errs error
	if v, ok := lookupEnv(EnvLogLevel); ok && v != "" {
		level, err := logging.LevelFromString(v)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, EnvLogLevel))
		} else {
			cfg.Log.Level = level
		}
	}
	if v, ok := lookupEnv(EnvHz); ok && v != "" {
		hz, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, EnvHz))
		} else {
			cfg.Sim.Hz = hz
		}
	}
	if v, ok := lookupEnv(EnvMaxTicks); ok && v != "" {
		ticks, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, EnvMaxTicks))
		} else {
			cfg.Sim.MaxTicks = ticks
		}
	}
	if v, ok := lookupEnv(EnvMap); ok && v != "" {
		cfg.Sim.MapPath = v
	}
	if v, ok := lookupEnv(EnvLandmark); ok && v != "" {
		cfg.Sim.LandmarkPath = v
	}
	return errs
}
