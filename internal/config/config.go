package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "YEARSYNC"
	defaultHTTPAddress  = "127.0.0.1:8787"
	defaultDatabasePath = "yearsync.db"
	defaultLogLevel     = "info"
	defaultCookieName   = "app_session"
	defaultIssuer       = "tauth"
	defaultDebounce     = 2 * time.Second
	defaultDocumentName = "year-view-config.json"
	defaultMaxAttempts  = 4
	defaultDriveBaseURL = "https://www.googleapis.com"
	defaultS3Region     = "us-east-1"

	ProviderDrive = "drive"
	ProviderS3    = "s3"
)

// AppConfig captures runtime configuration for the sync service.
type AppConfig struct {
	HTTPAddress       string
	AllowedOrigins    []string
	DatabasePath      string
	LogLevel          string
	LogFile           string
	TAuthSigningKey   string
	TAuthCookieName   string
	TAuthIssuer       string
	SyncDebounce      time.Duration
	DocumentName      string
	RemoteProvider    string
	RemoteMaxAttempts int
	DriveBaseURL      string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	S3UsePathStyle    bool
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultIssuer)
	configViper.SetDefault("sync.debounce", defaultDebounce)
	configViper.SetDefault("sync.document_name", defaultDocumentName)
	configViper.SetDefault("remote.provider", ProviderDrive)
	configViper.SetDefault("remote.max_attempts", defaultMaxAttempts)
	configViper.SetDefault("drive.base_url", defaultDriveBaseURL)
	configViper.SetDefault("s3.region", defaultS3Region)
	configViper.SetDefault("s3.use_path_style", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		AllowedOrigins:    configViper.GetStringSlice("http.allowed_origins"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		LogFile:           configViper.GetString("log.file"),
		TAuthSigningKey:   configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:   configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:       configViper.GetString("tauth.issuer"),
		SyncDebounce:      configViper.GetDuration("sync.debounce"),
		DocumentName:      configViper.GetString("sync.document_name"),
		RemoteProvider:    strings.ToLower(strings.TrimSpace(configViper.GetString("remote.provider"))),
		RemoteMaxAttempts: configViper.GetInt("remote.max_attempts"),
		DriveBaseURL:      configViper.GetString("drive.base_url"),
		S3Bucket:          configViper.GetString("s3.bucket"),
		S3Region:          configViper.GetString("s3.region"),
		S3Endpoint:        configViper.GetString("s3.endpoint"),
		S3Prefix:          configViper.GetString("s3.prefix"),
		S3UsePathStyle:    configViper.GetBool("s3.use_path_style"),
		S3AccessKeyID:     configViper.GetString("s3.access_key_id"),
		S3SecretAccessKey: configViper.GetString("s3.secret_access_key"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	if c.SyncDebounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive, got %s", c.SyncDebounce)
	}
	if strings.TrimSpace(c.DocumentName) == "" {
		return fmt.Errorf("sync.document_name is required")
	}
	if c.RemoteMaxAttempts < 1 {
		return fmt.Errorf("remote.max_attempts must be at least 1, got %d", c.RemoteMaxAttempts)
	}
	switch c.RemoteProvider {
	case ProviderDrive:
		if strings.TrimSpace(c.DriveBaseURL) == "" {
			return fmt.Errorf("drive.base_url is required for the drive provider")
		}
	case ProviderS3:
		if strings.TrimSpace(c.S3Bucket) == "" {
			return fmt.Errorf("s3.bucket is required for the s3 provider")
		}
		if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
			return fmt.Errorf("s3.access_key_id and s3.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("remote.provider must be %q or %q, got %q", ProviderDrive, ProviderS3, c.RemoteProvider)
	}
	return nil
}
