package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rdmdatalab/econbench/internal/warehouse"
)

// Config holds the application configuration loaded from flags, environment
// variables, .env files, and the config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Warehouse configuration
	Project string
	Dataset string

	// Source API keys
	CensusAPIKey string
	BeaAPIKey    string

	// Cloud Storage
	GCSBucket string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (econbench.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	bindAPIKeys()

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".econbench")
	}
	_ = viper.ReadInConfig()

	config := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),
		Format:  viper.GetString("format"),

		ConfigFile: viper.ConfigFileUsed(),

		Project: viper.GetString("bq_project"),
		Dataset: viper.GetString("bq_dataset"),

		CensusAPIKey: viper.GetString("CENSUS_API_KEY"),
		BeaAPIKey:    viper.GetString("BEA_API_KEY"),

		GCSBucket: viper.GetString("gcs_bucket"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	if config.Project == "" {
		config.Project = warehouse.DefaultProject
	}
	if config.Dataset == "" {
		config.Dataset = warehouse.DefaultDataset
	}
	return config, nil
}

// UpdateFromFlags applies parsed command flags. Flags take precedence over
// config file and environment values.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files. .env.local
// overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// bindAPIKeys explicitly binds the source API keys so they survive the env
// key replacer.
func bindAPIKeys() {
	apiKeys := []string{
		"CENSUS_API_KEY",
		"BEA_API_KEY",
		"BLS_API_KEY",
		"GOOGLE_APPLICATION_CREDENTIALS",
	}
	for _, key := range apiKeys {
		if err := viper.BindEnv(key); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind environment variable %s: %v\n", key, err)
		}
	}
}

// getEnvOrDefault returns the environment variable value or the default if
// not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
