// Package config loads the engine's tuning knobs — frame period, grace
// period, datagram MTU, rolling-average window, max clients, time-sync
// broadcast period — from a TOML file, with environment-variable overrides
// in the style of the teacher's config.go: an explicitly-set value always
// wins over an environment override. Since this engine ships no demo
// main/CLI surface, there are no flags to call flag.Visit on; TOML's own
// MetaData.IsDefined plays that role instead, telling us which keys the
// file actually set versus which are holding zero-value defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Engine holds the tunable parameters a ServerOption/ClientOption layer can
// be built from. Durations are plain time.Duration; callers convert to
// timeval.TimeDuration at the game.Game boundary.
type Engine struct {
	FramePeriod          time.Duration `toml:"frame_period"`
	GracePeriod          time.Duration `toml:"grace_period"`
	TimeSyncPeriod       time.Duration `toml:"time_sync_period"`
	ClientRollingAvgSize int           `toml:"client_rolling_avg_size"`
	MaxDatagramSize      int           `toml:"max_datagram_size"`
	MaxClients           int           `toml:"max_clients"`
	HandshakeTimeout     time.Duration `toml:"handshake_timeout"`
}

// Default returns the engine's conventional tuning: 20Hz frame rate, a
// quarter-second grace window, a one-second time-sync period, no client
// cap.
func Default() Engine {
	return Engine{
		FramePeriod:          50 * time.Millisecond,
		GracePeriod:          250 * time.Millisecond,
		TimeSyncPeriod:       time.Second,
		ClientRollingAvgSize: 20,
		MaxDatagramSize:      1200,
		MaxClients:           0,
		HandshakeTimeout:     5 * time.Second,
	}
}

// envPrefix namespaces the override variables, e.g. LOCKSTEP_FRAME_PERIOD.
const envPrefix = "LOCKSTEP_"

// Load reads path as TOML over Default(), then applies LOCKSTEP_* env
// overrides to any field the file itself left unset.
func Load(path string) (Engine, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Engine{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := applyEnvOverrides(&cfg, meta); err != nil {
		return Engine{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}

// applyEnvOverrides maps LOCKSTEP_* variables onto cfg fields the TOML file
// did not explicitly set (meta.IsDefined reports the file's own keys,
// playing the role the teacher's flag.Visit set played for flags).
func applyEnvOverrides(cfg *Engine, meta toml.MetaData) error {
	var firstErr error
	setDuration := func(tomlKey, envKey string, dst *time.Duration) {
		if meta.IsDefined(tomlKey) {
			return
		}
		v, ok := lookupEnv(envKey)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("config: invalid %s: %w", envKey, err)
			}
			return
		}
		*dst = d
	}
	setInt := func(tomlKey, envKey string, dst *int) {
		if meta.IsDefined(tomlKey) {
			return
		}
		v, ok := lookupEnv(envKey)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("config: invalid %s: %w", envKey, err)
			}
			return
		}
		*dst = n
	}

	setDuration("frame_period", envPrefix+"FRAME_PERIOD", &cfg.FramePeriod)
	setDuration("grace_period", envPrefix+"GRACE_PERIOD", &cfg.GracePeriod)
	setDuration("time_sync_period", envPrefix+"TIME_SYNC_PERIOD", &cfg.TimeSyncPeriod)
	setDuration("handshake_timeout", envPrefix+"HANDSHAKE_TIMEOUT", &cfg.HandshakeTimeout)
	setInt("client_rolling_avg_size", envPrefix+"CLIENT_ROLLING_AVG_SIZE", &cfg.ClientRollingAvgSize)
	setInt("max_datagram_size", envPrefix+"MAX_DATAGRAM_SIZE", &cfg.MaxDatagramSize)
	setInt("max_clients", envPrefix+"MAX_CLIENTS", &cfg.MaxClients)
	return firstErr
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate checks the loaded values are semantically usable. It never
// touches the network or filesystem.
func (e Engine) Validate() error {
	if e.FramePeriod <= 0 {
		return fmt.Errorf("config: frame_period must be > 0")
	}
	if e.GracePeriod < 0 {
		return fmt.Errorf("config: grace_period must be >= 0")
	}
	if e.TimeSyncPeriod <= 0 {
		return fmt.Errorf("config: time_sync_period must be > 0")
	}
	if e.ClientRollingAvgSize <= 0 {
		return fmt.Errorf("config: client_rolling_avg_size must be > 0")
	}
	if e.MaxDatagramSize <= 0 {
		return fmt.Errorf("config: max_datagram_size must be > 0")
	}
	if e.MaxClients < 0 {
		return fmt.Errorf("config: max_clients must be >= 0")
	}
	if e.HandshakeTimeout <= 0 {
		return fmt.Errorf("config: handshake_timeout must be > 0")
	}
	return nil
}
