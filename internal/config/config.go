// Package config provides environment helpers for go-gaze commands.
package config

import (
	"os"
	"time"
)

// Defaults used when the environment is silent.
const (
	DefaultAddr     = ":8090"
	DefaultTick     = 33 * time.Millisecond
	DefaultLogLevel = "info"
)

// Addr returns the HTTP listen address from GAZE_ADDR or DefaultAddr.
func Addr() string {
	return env("GAZE_ADDR", DefaultAddr)
}

// RigPath returns the rig file from GAZE_RIG.
// Falls back to the provided default if not set.
func RigPath(defaultPath string) string {
	return env("GAZE_RIG", defaultPath)
}

// ScenarioPath returns the scenario file from GAZE_SCENARIO or the default.
func ScenarioPath(defaultPath string) string {
	return env("GAZE_SCENARIO", defaultPath)
}

// TickRate returns the world tick period from GAZE_TICK (a Go duration
// such as "20ms"). Invalid or non-positive values yield DefaultTick.
func TickRate() time.Duration {
	v := os.Getenv("GAZE_TICK")
	if v == "" {
		return DefaultTick
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return DefaultTick
	}
	return d
}

// LogLevel returns the level from LOG_LEVEL or DefaultLogLevel.
func LogLevel() string {
	return env("LOG_LEVEL", DefaultLogLevel)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
