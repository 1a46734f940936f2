package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Search failure policies for the directory reader.
const (
	SearchFailureAbort = "abort"
	SearchFailureEmpty = "empty"
)

// Store write modes.
const (
	WriteModeInsert = "insert"
	WriteModeUpsert = "upsert"
)

// Config holds the sync job configuration
type Config struct {
	LDAP    LDAPConfig
	MongoDB MongoDBConfig
	Sync    SyncConfig
	Redis   RedisConfig
	MinIO   MinIOConfig
	Metrics MetricsConfig
	Log     LogConfig
}

type LDAPConfig struct {
	ServerAddress string
	BindDN        string
	BindPassword  string
	BaseDN        string
	Timeout       time.Duration
	PageSize      uint32
	SearchFailure string
}

type MongoDBConfig struct {
	URI              string
	Database         string
	Collection       string
	RunsCollection   string
	Timeout          time.Duration
	BatchSize        int
	BatchesPerSecond float64
}

type SyncConfig struct {
	WriteMode  string
	AssumeYes  bool
	DryRun     bool
	RecordRuns bool
	ShowRun    string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	LockKey  string
	LockTTL  time.Duration
}

// MinIOConfig configures the snapshot archive. An empty Endpoint disables it.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
}

// Enabled reports whether an endpoint is configured.
func (c MinIOConfig) Enabled() bool { return c.Endpoint != "" }

type MetricsConfig struct {
	TextfilePath string
}

type LogConfig struct {
	Level  string
	Format string
}

// Flags returns the command-line flags understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("usersync", pflag.ContinueOnError)
	fs.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	fs.BoolP("yes", "y", false, "skip the confirmation prompt")
	fs.Bool("dry-run", false, "preview the directory users and stop")
	fs.String("write-mode", WriteModeInsert, "store write mode: insert|upsert")
	fs.String("search-failure", SearchFailureAbort, "directory search failure policy: abort|empty")
	fs.String("log-level", "info", "log level: debug|info|warn|error")
	fs.String("show-run", "", "print the stored record and snapshot of a past run and exit")
	return fs
}

// LoadConfig loads configuration from flags, environment variables and an optional .env file.
// fs may be nil, in which case only the environment and defaults are used.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	envFile := ".env"
	if fs != nil {
		if f := fs.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
	}
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	v.AutomaticEnv()

	v.SetDefault("LDAP_TIMEOUT", 30)
	v.SetDefault("LDAP_PAGE_SIZE", 500)
	v.SetDefault("LDAP_SEARCH_FAILURE", SearchFailureAbort)
	v.SetDefault("MONGODB_DATABASE", "test")
	v.SetDefault("MONGODB_COLLECTION", "users")
	v.SetDefault("MONGODB_RUNS_COLLECTION", "sync_runs")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MONGODB_BATCH_SIZE", 0)
	v.SetDefault("MONGODB_BATCHES_PER_SECOND", 0)
	v.SetDefault("SYNC_WRITE_MODE", WriteModeInsert)
	v.SetDefault("SYNC_RECORD_RUNS", false)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_LOCK_KEY", "usersync:lock")
	v.SetDefault("REDIS_LOCK_TTL", 900)
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_BUCKET", "usersync")
	v.SetDefault("MINIO_SNAPSHOT_PREFIX", "snapshots/")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	if fs != nil {
		binds := map[string]string{
			"SYNC_ASSUME_YES":     "yes",
			"SYNC_DRY_RUN":        "dry-run",
			"SYNC_WRITE_MODE":     "write-mode",
			"LDAP_SEARCH_FAILURE": "search-failure",
			"LOG_LEVEL":           "log-level",
			"SYNC_SHOW_RUN":       "show-run",
		}
		for key, name := range binds {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		LDAP: LDAPConfig{
			ServerAddress: v.GetString("LDAP_SERVER"),
			BindDN:        v.GetString("LDAP_BIND_DN"),
			BindPassword:  v.GetString("LDAP_BIND_PASSWORD"),
			BaseDN:        v.GetString("LDAP_BASE_DN"),
			Timeout:       time.Duration(v.GetInt("LDAP_TIMEOUT")) * time.Second,
			PageSize:      v.GetUint32("LDAP_PAGE_SIZE"),
			SearchFailure: strings.ToLower(v.GetString("LDAP_SEARCH_FAILURE")),
		},
		MongoDB: MongoDBConfig{
			URI:              v.GetString("MONGODB_URI"),
			Database:         v.GetString("MONGODB_DATABASE"),
			Collection:       v.GetString("MONGODB_COLLECTION"),
			RunsCollection:   v.GetString("MONGODB_RUNS_COLLECTION"),
			Timeout:          time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
			BatchSize:        v.GetInt("MONGODB_BATCH_SIZE"),
			BatchesPerSecond: v.GetFloat64("MONGODB_BATCHES_PER_SECOND"),
		},
		Sync: SyncConfig{
			WriteMode:  strings.ToLower(v.GetString("SYNC_WRITE_MODE")),
			AssumeYes:  v.GetBool("SYNC_ASSUME_YES"),
			DryRun:     v.GetBool("SYNC_DRY_RUN"),
			RecordRuns: v.GetBool("SYNC_RECORD_RUNS"),
			ShowRun:    v.GetString("SYNC_SHOW_RUN"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockKey:  v.GetString("REDIS_LOCK_KEY"),
			LockTTL:  time.Duration(v.GetInt("REDIS_LOCK_TTL")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Region:    v.GetString("MINIO_REGION"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			Prefix:    v.GetString("MINIO_SNAPSHOT_PREFIX"),
		},
		Metrics: MetricsConfig{
			TextfilePath: v.GetString("METRICS_TEXTFILE"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing required settings and unknown policy values.
func (c *Config) Validate() error {
	var missing []string
	if c.LDAP.ServerAddress == "" {
		missing = append(missing, "LDAP_SERVER")
	}
	if c.LDAP.BindDN == "" {
		missing = append(missing, "LDAP_BIND_DN")
	}
	if c.LDAP.BaseDN == "" {
		missing = append(missing, "LDAP_BASE_DN")
	}
	if c.MongoDB.URI == "" {
		missing = append(missing, "MONGODB_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	switch c.LDAP.SearchFailure {
	case SearchFailureAbort, SearchFailureEmpty:
	default:
		return fmt.Errorf("invalid LDAP_SEARCH_FAILURE %q (want %s or %s)", c.LDAP.SearchFailure, SearchFailureAbort, SearchFailureEmpty)
	}
	switch c.Sync.WriteMode {
	case WriteModeInsert, WriteModeUpsert:
	default:
		return fmt.Errorf("invalid SYNC_WRITE_MODE %q (want %s or %s)", c.Sync.WriteMode, WriteModeInsert, WriteModeUpsert)
	}
	if c.LDAP.Timeout <= 0 || c.MongoDB.Timeout <= 0 {
		return fmt.Errorf("LDAP_TIMEOUT and MONGODB_TIMEOUT must be positive")
	}
	if c.MinIO.Enabled() && c.MinIO.Bucket == "" {
		return fmt.Errorf("MINIO_BUCKET must be set when MINIO_ENDPOINT is configured")
	}
	if c.MongoDB.BatchSize < 0 {
		return fmt.Errorf("MONGODB_BATCH_SIZE must not be negative")
	}
	return nil
}
