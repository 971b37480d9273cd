package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/teide/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultValues(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, 0, cfg.WorkerPoolSize) // 0 means auto-detect
	assert.Equal(t, 1000, cfg.ParallelThreshold)
	assert.Equal(t, ",", cfg.CSVDelimiter)
	assert.Equal(t, ',', cfg.Delimiter())
	assert.False(t, cfg.CSVNoHeader)
	assert.Empty(t, cfg.CSVNullValue)
	assert.False(t, cfg.VerboseLogging)
	assert.False(t, cfg.MetricsCollection)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name:   "valid config",
			mutate: func(c *config.Config) { c.WorkerPoolSize = 4 },
		},
		{
			name:          "negative worker pool size",
			mutate:        func(c *config.Config) { c.WorkerPoolSize = -1 },
			expectedError: "WorkerPoolSize must be non-negative, got -1",
		},
		{
			name:          "zero parallel threshold",
			mutate:        func(c *config.Config) { c.ParallelThreshold = 0 },
			expectedError: "ParallelThreshold must be positive, got 0",
		},
		{
			name:          "multi-character delimiter",
			mutate:        func(c *config.Config) { c.CSVDelimiter = "::" },
			expectedError: `CSVDelimiter must be a single character, got "::"`,
		},
		{
			name:          "negative sym limit",
			mutate:        func(c *config.Config) { c.MaxSymEntries = -2 },
			expectedError: "MaxSymEntries must be non-negative, got -2",
		},
		{
			name:          "half of the s3 credentials",
			mutate:        func(c *config.Config) { c.S3AccessKey = "key" },
			expectedError: "S3AccessKey and S3SecretKey must be set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.expectedError, err.Error())
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := config.Config{WorkerPoolSize: 2, VerboseLogging: true}.WithDefaults()

	assert.Equal(t, 2, cfg.WorkerPoolSize)
	assert.Equal(t, config.DefaultParallelThreshold, cfg.ParallelThreshold)
	assert.Equal(t, config.DefaultCSVDelimiter, cfg.CSVDelimiter)
	assert.True(t, cfg.VerboseLogging)
}

func TestConfig_GlobalConfig(t *testing.T) {
	original := config.GetGlobalConfig()
	defer config.SetGlobalConfig(original)

	custom := config.NewConfig()
	custom.WorkerPoolSize = 3
	config.SetGlobalConfig(custom)

	assert.Equal(t, 3, config.GetGlobalConfig().WorkerPoolSize)
}

func TestConfig_LoadFromJSON(t *testing.T) {
	cfg, err := config.LoadFromJSON([]byte(`{"worker_pool_size": 8, "csv_delimiter": ";", "metrics_collection": true}`))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.WorkerPoolSize)
	assert.Equal(t, ';', cfg.Delimiter())
	assert.True(t, cfg.MetricsCollection)
	assert.Equal(t, config.DefaultParallelThreshold, cfg.ParallelThreshold)

	_, err = config.LoadFromJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestConfig_LoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "teide.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(
		"worker_pool_size: 2\ncsv_null_value: NA\ns3_endpoint: localhost:9000\nverbose_logging: true\n"), 0o600))

	cfg, err := config.LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerPoolSize)
	assert.Equal(t, "NA", cfg.CSVNullValue)
	assert.Equal(t, "localhost:9000", cfg.S3Endpoint)
	assert.True(t, cfg.VerboseLogging)
	assert.Equal(t, ",", cfg.CSVDelimiter)

	jsonPath := filepath.Join(dir, "teide.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"parallel_threshold": 10}`), 0o600))
	cfg, err = config.LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ParallelThreshold)

	tomlPath := filepath.Join(dir, "teide.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(""), 0o600))
	_, err = config.LoadFromFile(tomlPath)
	assert.ErrorContains(t, err, "unsupported config file format: .toml")

	_, err = config.LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("TEIDE_WORKER_POOL_SIZE", "6")
	t.Setenv("TEIDE_PARALLEL_THRESHOLD", "not-a-number")
	t.Setenv("TEIDE_CSV_DELIMITER", "|")
	t.Setenv("TEIDE_CSV_NULL_VALUE", "NULL")
	t.Setenv("TEIDE_S3_USE_SSL", "true")
	t.Setenv("TEIDE_METRICS_COLLECTION", "1")

	cfg := config.LoadFromEnv()

	assert.Equal(t, 6, cfg.WorkerPoolSize)
	assert.Equal(t, config.DefaultParallelThreshold, cfg.ParallelThreshold)
	assert.Equal(t, '|', cfg.Delimiter())
	assert.Equal(t, "NULL", cfg.CSVNullValue)
	assert.True(t, cfg.S3UseSSL)
	assert.True(t, cfg.MetricsCollection)
}
