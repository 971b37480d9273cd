// Package config provides configuration management for teide contexts and
// the local execution engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config holds engine, source and diagnostics settings.
type Config struct {
	// Parallel Processing Configuration
	WorkerPoolSize    int `json:"worker_pool_size" yaml:"worker_pool_size"`     // Number of worker goroutines (0 = auto-detect)
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"` // Minimum rows before column work fans out

	// Source Configuration
	CSVDelimiter  string `json:"csv_delimiter" yaml:"csv_delimiter"`     // Field delimiter for .csv sources (single character)
	CSVNoHeader   bool   `json:"csv_no_header" yaml:"csv_no_header"`     // First row is data, columns are named column_<i>
	CSVNullValue  string `json:"csv_null_value" yaml:"csv_null_value"`   // Token read as null in addition to the empty field
	MaxSymEntries int    `json:"max_sym_entries" yaml:"max_sym_entries"` // Dictionary size limit for sym columns (0 = unlimited)

	// Object Store Configuration (s3:// sources)
	S3Endpoint  string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Region    string `json:"s3_region" yaml:"s3_region"`
	S3AccessKey string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3UseSSL    bool   `json:"s3_use_ssl" yaml:"s3_use_ssl"`

	// Debugging Configuration
	VerboseLogging    bool `json:"verbose_logging" yaml:"verbose_logging"`       // Enable debug logging
	MetricsCollection bool `json:"metrics_collection" yaml:"metrics_collection"` // Enable per-operation metrics
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultParallelThreshold = 1000
	DefaultCSVDelimiter      = ","
)

func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		WorkerPoolSize:    0, // Auto-detect
		ParallelThreshold: DefaultParallelThreshold,
		CSVDelimiter:      DefaultCSVDelimiter,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}

	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("ParallelThreshold must be positive, got %d", c.ParallelThreshold)
	}

	if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		return fmt.Errorf("CSVDelimiter must be a single character, got %q", c.CSVDelimiter)
	}

	if c.MaxSymEntries < 0 {
		return fmt.Errorf("MaxSymEntries must be non-negative, got %d", c.MaxSymEntries)
	}

	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("S3AccessKey and S3SecretKey must be set together")
	}

	return nil
}

// Delimiter returns the CSV delimiter as a rune.
func (c Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = defaults.ParallelThreshold
	}
	if c.CSVDelimiter == "" {
		c.CSVDelimiter = defaults.CSVDelimiter
	}

	// Boolean fields are left alone so an explicit false survives.

	return c
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a .json, .yaml or .yml file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from TEIDE_* environment variables on
// top of the defaults.
func LoadFromEnv() Config {
	return ApplyEnv(NewConfig())
}

// ApplyEnv overrides config with any TEIDE_* environment variables that are
// set. Unparseable values are ignored.
func ApplyEnv(config Config) Config {
	if val := os.Getenv("TEIDE_WORKER_POOL_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.WorkerPoolSize = parsed
		}
	}

	if val := os.Getenv("TEIDE_PARALLEL_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ParallelThreshold = parsed
		}
	}

	if val := os.Getenv("TEIDE_CSV_DELIMITER"); val != "" {
		config.CSVDelimiter = val
	}

	if val := os.Getenv("TEIDE_CSV_NO_HEADER"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.CSVNoHeader = parsed
		}
	}

	if val, ok := os.LookupEnv("TEIDE_CSV_NULL_VALUE"); ok {
		config.CSVNullValue = val
	}

	if val := os.Getenv("TEIDE_MAX_SYM_ENTRIES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MaxSymEntries = parsed
		}
	}

	if val := os.Getenv("TEIDE_S3_ENDPOINT"); val != "" {
		config.S3Endpoint = val
	}

	if val := os.Getenv("TEIDE_S3_REGION"); val != "" {
		config.S3Region = val
	}

	if val := os.Getenv("TEIDE_S3_ACCESS_KEY"); val != "" {
		config.S3AccessKey = val
	}

	if val := os.Getenv("TEIDE_S3_SECRET_KEY"); val != "" {
		config.S3SecretKey = val
	}

	if val := os.Getenv("TEIDE_S3_USE_SSL"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.S3UseSSL = parsed
		}
	}

	if val := os.Getenv("TEIDE_VERBOSE_LOGGING"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.VerboseLogging = parsed
		}
	}

	if val := os.Getenv("TEIDE_METRICS_COLLECTION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.MetricsCollection = parsed
		}
	}

	return config
}
