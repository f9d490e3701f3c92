// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all server and game settings.
//
// IMPORTANT: when changing defaults, only modify this file. Everything
// else reads these values.
package config

import (
	"os"
	"strconv"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Host string
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Host: "0.0.0.0",
		Port: 8765,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if h := os.Getenv("HOST"); h != "" {
		cfg.Host = h
	}
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}

	return cfg
}

// =============================================================================
// GAME / LOCKSTEP CONFIGURATION
// =============================================================================

// GameConfig holds the lockstep clock and room settings.
type GameConfig struct {
	TickRate     int           // Logical ticks per second
	MaxPlayers   int           // Per-room player cap
	StartPlayers int           // Membership threshold that starts the match
	FrameTimeout time.Duration // No-commit window before a forced tick
	Seed         uint32        // Optional shared seed override (0 = derive per room)
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:     30,
		MaxPlayers:   4,
		StartPlayers: 2,
		FrameTimeout: time.Second,
	}
}

// GameFromEnv returns game configuration with environment overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	if sp := getEnvInt("START_PLAYERS", 0); sp > 0 {
		cfg.StartPlayers = sp
	}
	if ms := getEnvInt("FRAME_TIMEOUT_MS", 0); ms > 0 {
		cfg.FrameTimeout = time.Duration(ms) * time.Millisecond
	}
	if s := getEnvInt("GAME_SEED", 0); s > 0 {
		cfg.Seed = uint32(s)
	}

	return cfg
}

// TickInterval is the wall-clock spacing between ticks.
func (g GameConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(g.TickRate)
}

// =============================================================================
// PROTECTION LIMITS
// =============================================================================

// LimitsConfig controls admission, rate limiting and abuse thresholds.
type LimitsConfig struct {
	MaxRequestsPerSecond float64       // Per-player message rate
	MaxInputSize         int           // Wire message size cap in bytes
	MaxCoordinate        int           // |target| bound in world units
	MaxViolations        int           // Violations in window before close
	ViolationWindow      time.Duration // Sliding violation window
	AuthTimeout          time.Duration // Deadline for the auth message
	HeartbeatTimeout     time.Duration // Max silence before close
	DisconnectRetention  time.Duration // Reconnect grace for dropped players
	EmptyRoomTTL         time.Duration // Idle empty room lifetime
}

// DefaultLimits returns production-safe limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxRequestsPerSecond: 100,
		MaxInputSize:         10 * 1024,
		MaxCoordinate:        10000,
		MaxViolations:        10,
		ViolationWindow:      10 * time.Second,
		AuthTimeout:          5 * time.Second,
		HeartbeatTimeout:     20 * time.Second,
		DisconnectRetention:  30 * time.Second,
		EmptyRoomTTL:         60 * time.Second,
	}
}

// LimitsFromEnv returns limits with environment overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if r := getEnvInt("MAX_REQUESTS_PER_SECOND", 0); r > 0 {
		cfg.MaxRequestsPerSecond = float64(r)
	}
	if s := getEnvInt("MAX_INPUT_SIZE", 0); s > 0 {
		cfg.MaxInputSize = s
	}
	if c := getEnvInt("MAX_COORDINATE", 0); c > 0 {
		cfg.MaxCoordinate = c
	}
	if v := getEnvInt("MAX_VIOLATIONS", 0); v > 0 {
		cfg.MaxViolations = v
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server ServerConfig
	Game   GameConfig
	Limits LimitsConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server: ServerFromEnv(),
		Game:   GameFromEnv(),
		Limits: LimitsFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
