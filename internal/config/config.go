package config

import (
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds every environment-driven knob for the solve service
// (SPEC_FULL §EXPANSION "ambient stack: configuration"). Adapted from
// the teacher's config.Config: HTTP/Logging kept verbatim in shape,
// Database/Auth replaced with Optimization (trust-region driver
// defaults) and Planning (toy-environment defaults for example
// scenarios).
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		WorkerCount            int     `env:"OPT_WORKER_COUNT" envDefault:"10"`
		InitialMeritErrorCoeff float64 `env:"OPT_INITIAL_MERIT_COEFF" envDefault:"10"`
		MaxMeritCoeffIncreases int     `env:"OPT_MAX_MERIT_INCREASES" envDefault:"5"`
		InitialTrustBoxSize    float64 `env:"OPT_INITIAL_TRUST_BOX_SIZE" envDefault:"0.1"`
		MinTrustBoxSize        float64 `env:"OPT_MIN_TRUST_BOX_SIZE" envDefault:"0.0001"`
		MaxIterations          int     `env:"OPT_MAX_ITERATIONS" envDefault:"50"`
		MaxQPSolverFailures    int     `env:"OPT_MAX_QP_FAILURES" envDefault:"3"`
		MaxTimeSeconds         float64 `env:"OPT_MAX_TIME_SECONDS" envDefault:"30"`
	}
	Planning struct {
		CollisionMargin       float64 `env:"PLAN_COLLISION_MARGIN" envDefault:"0.01"`
		CollisionMarginBuffer float64 `env:"PLAN_COLLISION_MARGIN_BUFFER" envDefault:"0.02"`
		LongestValidSegment   float64 `env:"PLAN_LONGEST_VALID_SEGMENT" envDefault:"0.005"`
		MaxNumContacts        int     `env:"PLAN_MAX_NUM_CONTACTS" envDefault:"3"`
		CollisionCacheSize    int     `env:"PLAN_COLLISION_CACHE_SIZE" envDefault:"4096"`
	}
}

// Load reads Config from the process environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool returns the value of the environment variable as bool or the default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
