package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is looked up in the config directory passed to Load.
const ConfigFileName = "trackmark.cfg.json"

// MemoryConfig holds in-memory storage backend settings
type MemoryConfig struct {
	SnapshotPath string `json:"snapshotPath" mapstructure:"snapshotPath"`
	Compress     bool   `json:"compress" mapstructure:"compress"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the persistence boundary
type StorageConfig struct {
	Type           string       `json:"type" mapstructure:"type"`
	AttachmentsDir string       `json:"attachmentsDir" mapstructure:"attachmentsDir"`
	Memory         MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite         SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// BreakerConfig holds circuit breaker settings for the web application client
type BreakerConfig struct {
	MaxFailures uint32        `json:"maxFailures" mapstructure:"maxFailures"`
	OpenTimeout time.Duration `json:"openTimeout" mapstructure:"openTimeout"`
}

// APIConfig holds web application client settings
type APIConfig struct {
	ServerURL string        `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string        `json:"apiKey" mapstructure:"apiKey"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	Breaker   BreakerConfig `json:"breaker" mapstructure:"breaker"`
}

// ImportConfig holds CSV import settings
type ImportConfig struct {
	Workers       int     `json:"workers" mapstructure:"workers"`
	RatePerSecond float64 `json:"ratePerSecond" mapstructure:"ratePerSecond"`
	Strict        bool    `json:"strict" mapstructure:"strict"`
}

// ViewerConfig holds file view settings
type ViewerConfig struct {
	RecenterEpsilon  float64 `json:"recenterEpsilon" mapstructure:"recenterEpsilon"`
	NearbyRadius     float64 `json:"nearbyRadius" mapstructure:"nearbyRadius"`
	SearchMaxResults int     `json:"searchMaxResults" mapstructure:"searchMaxResults"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB settings for import run reporting
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// GraylogConfig holds GELF log sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadDefaults applies default values without reading a file.
func LoadDefaults() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./trackmarklogs")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.attachmentsDir", "./attachments")
	viper.SetDefault("storage.memory.snapshotPath", "")
	viper.SetDefault("storage.memory.compress", false)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./trackmark.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "trackmark")

	viper.SetDefault("api.serverUrl", "http://localhost:3000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.breaker.maxFailures", 5)
	viper.SetDefault("api.breaker.openTimeout", "30s")

	viper.SetDefault("import.workers", 1)
	viper.SetDefault("import.ratePerSecond", 0)
	viper.SetDefault("import.strict", false)

	viper.SetDefault("viewer.recenterEpsilon", 1e-4)
	viper.SetDefault("viewer.nearbyRadius", 25.0)
	viper.SetDefault("search.maxResults", 30)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "trackmark")
	viper.SetDefault("influx.bucket", "trackmark-imports")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "trackmark")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:           viper.GetString("storage.type"),
		AttachmentsDir: viper.GetString("storage.attachmentsDir"),
		Memory: MemoryConfig{
			SnapshotPath: viper.GetString("storage.memory.snapshotPath"),
			Compress:     viper.GetBool("storage.memory.compress"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetAPIConfig returns the web application client configuration.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Timeout:   viper.GetDuration("api.timeout"),
		Breaker: BreakerConfig{
			MaxFailures: viper.GetUint32("api.breaker.maxFailures"),
			OpenTimeout: viper.GetDuration("api.breaker.openTimeout"),
		},
	}
}

// GetImportConfig returns the CSV import configuration.
func GetImportConfig() ImportConfig {
	workers := viper.GetInt("import.workers")
	if workers < 1 {
		workers = 1
	}
	return ImportConfig{
		Workers:       workers,
		RatePerSecond: viper.GetFloat64("import.ratePerSecond"),
		Strict:        viper.GetBool("import.strict"),
	}
}

// GetViewerConfig returns the file view configuration.
func GetViewerConfig() ViewerConfig {
	return ViewerConfig{
		RecenterEpsilon:  viper.GetFloat64("viewer.recenterEpsilon"),
		NearbyRadius:     viper.GetFloat64("viewer.nearbyRadius"),
		SearchMaxResults: viper.GetInt("search.maxResults"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF sink configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
