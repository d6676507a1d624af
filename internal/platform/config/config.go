// Package config loads sagacore's two-tier configuration: secrets and
// connection strings from the environment, and structural,
// version-controlled knobs from a YAML file, so settings that belong in
// a file never end up alongside secrets in the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/sagacore/internal/platform/logger"
)

// Env holds secrets and connection strings, loaded strictly from
// environment variables.
type Env struct {
	DatabaseDSN     string
	SQLiteDSN       string
	RedisAddr       string
	TemporalAddress string
	TemporalNamespace string
	TemporalTaskQueue string
	JWTSigningKey   string
	AdminPort       string
}

// Structural is the version-controlled knob set, parsed from a YAML
// file (sagacore.yaml). Values here have sane defaults and never hold
// secrets.
type Structural struct {
	SafetyFactor          int           `yaml:"safety_factor"`
	AggregationPageSize   int           `yaml:"aggregation_page_size"`
	RetryMaxAttempts      int           `yaml:"retry_max_attempts"`
	BackoffMin            time.Duration `yaml:"backoff_min"`
	BackoffMax            time.Duration `yaml:"backoff_max"`
	BackoffJitterFraction float64       `yaml:"backoff_jitter_fraction"`
	CPUBudgetCeiling      time.Duration `yaml:"cpu_budget_ceiling"`
	HeapBudgetCeilingMB   int           `yaml:"heap_budget_ceiling_mb"`
}

func defaultStructural() Structural {
	return Structural{
		SafetyFactor:          80,
		AggregationPageSize:   200,
		RetryMaxAttempts:      5,
		BackoffMin:            1 * time.Second,
		BackoffMax:            30 * time.Second,
		BackoffJitterFraction: 0.20,
		CPUBudgetCeiling:      10 * time.Second,
		HeapBudgetCeilingMB:   512,
	}
}

// LoadEnv reads secrets/connection strings from the process environment.
func LoadEnv(log *logger.Logger) Env {
	return Env{
		DatabaseDSN:       GetEnv("SAGACORE_DATABASE_DSN", "", log),
		SQLiteDSN:         GetEnv("SAGACORE_SQLITE_DSN", "file::memory:?cache=shared", log),
		RedisAddr:         GetEnv("SAGACORE_REDIS_ADDR", "localhost:6379", log),
		TemporalAddress:   GetEnv("TEMPORAL_ADDRESS", "", log),
		TemporalNamespace: GetEnv("TEMPORAL_NAMESPACE", "sagacore", log),
		TemporalTaskQueue: GetEnv("TEMPORAL_TASK_QUEUE", "sagacore", log),
		JWTSigningKey:     GetEnv("SAGACORE_JWT_SIGNING_KEY", "", log),
		AdminPort:         GetEnv("SAGACORE_ADMIN_PORT", "8080", log),
	}
}

// LoadStructural reads path (sagacore.yaml) if present, overlaying it on
// top of defaultStructural(); a missing file is not an error, keeping
// the "safe to run with zero config" expectation GetEnv/GetEnvAsInt
// already give the Env side.
func LoadStructural(path string, log *logger.Logger) (Structural, error) {
	cfg := defaultStructural()
	if strings.TrimSpace(path) == "" {
		path = "sagacore.yaml"
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if log != nil {
				log.Info("No structural config file found; using defaults", "path", path)
			}
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if cfg.SafetyFactor < 50 {
		cfg.SafetyFactor = 50
	}
	if cfg.SafetyFactor > 95 {
		cfg.SafetyFactor = 95
	}
	return cfg, nil
}

// GetEnv reads a string env var, logging and falling back to def when
// unset.
func GetEnv(key, def string, log *logger.Logger) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		if log != nil {
			log.Debug("Env var unset; using default", "key", key)
		}
		return def
	}
	return v
}

// GetEnvAsInt is GetEnv parsed as an int, falling back to def on a
// missing or unparseable value.
func GetEnvAsInt(key string, def int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("Env var is not an int; using default", "key", key, "value", v)
		}
		return def
	}
	return n
}
