package config

import (
	"os"
	"strconv"
	"time"

	"taxval/internal/errors"
)

// Config represents the complete application configuration. Defaults are
// supplied here by the calling layer; the engine and comparator never read
// the environment themselves.
type Config struct {
	Validation ValidationConfig
	Comparison ComparisonConfig
	Reference  ReferenceConfig
	Server     ServerConfig
	Paths      PathConfig
}

// ValidationConfig holds consensus engine settings
type ValidationConfig struct {
	// Tolerance is the maximum absolute difference treated as matching,
	// in units of the compared quantity (dollars for most tax variables).
	Tolerance float64
	Year      int
}

// ComparisonConfig holds bulk record comparison settings
type ComparisonConfig struct {
	Tolerance float64
	// TopNMismatches bounds the worst-case diagnostics kept per variable;
	// 0 keeps every mismatch.
	TopNMismatches int
	// Workers caps the comparator's parallel chunk count; 0 means GOMAXPROCS.
	Workers int
}

// ReferenceConfig holds subprocess reference calculator settings
type ReferenceConfig struct {
	// Command is the reference calculator executable; empty disables the adapter.
	Command string
	Timeout time.Duration
	Primary bool
}

// ServerConfig holds dashboard server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	FixturesDir string
	OracleFile  string
	ReportDir   string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Validation: ValidationConfig{
			Tolerance: getEnvFloatOrDefault("TOLERANCE", 1.0),
			Year:      getEnvIntOrDefault("TAX_YEAR", time.Now().Year()),
		},
		Comparison: ComparisonConfig{
			Tolerance:      getEnvFloatOrDefault("COMPARE_TOLERANCE", getEnvFloatOrDefault("TOLERANCE", 1.0)),
			TopNMismatches: getEnvIntOrDefault("TOP_N_MISMATCHES", 10),
			Workers:        getEnvIntOrDefault("COMPARE_WORKERS", 0),
		},
		Reference: ReferenceConfig{
			Command: getEnvOrDefault("REFERENCE_CMD", ""),
			Timeout: getEnvDurationOrDefault("REFERENCE_TIMEOUT", 30*time.Second),
			Primary: getEnvBoolOrDefault("REFERENCE_PRIMARY", true),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Paths: PathConfig{
			FixturesDir: getEnvOrDefault("FIXTURES_DIR", "./fixtures"),
			OracleFile:  getEnvOrDefault("ORACLE_FILE", ""),
			ReportDir:   getEnvOrDefault("REPORT_DIR", "./reports"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Validation.Tolerance < 0 {
		return errors.ConfigInvalid("TOLERANCE must be non-negative")
	}
	if config.Comparison.Tolerance < 0 {
		return errors.ConfigInvalid("COMPARE_TOLERANCE must be non-negative")
	}
	if config.Comparison.TopNMismatches < 0 {
		return errors.ConfigInvalid("TOP_N_MISMATCHES must be non-negative")
	}
	if config.Validation.Year < 1900 {
		return errors.ConfigInvalid("TAX_YEAR is implausible")
	}
	if config.Reference.Command != "" && config.Reference.Timeout <= 0 {
		return errors.ConfigInvalid("REFERENCE_TIMEOUT must be positive when REFERENCE_CMD is set")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
