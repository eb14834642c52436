package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sitevisit/backend/internal/booking"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DBConfig       `mapstructure:"database"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Logs     LogsConfig     `mapstructure:"logs"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Seed     SeedConfig     `mapstructure:"seed"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type DBConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | mysql | sqlite
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type MinIOConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	PublicEndpoint string        `mapstructure:"public_endpoint"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	Bucket         string        `mapstructure:"bucket"`
	Region         string        `mapstructure:"region"`
	UseSSL         bool          `mapstructure:"use_ssl"`
	PresignExpiry  time.Duration `mapstructure:"presign_expiry"`
}

type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

type BookingConfig struct {
	Timezone          string `mapstructure:"timezone"`
	AdminProjectScope string `mapstructure:"admin_project_scope"`
	MaxFileBytes      int64  `mapstructure:"max_file_bytes"`
	MaxGeneralFiles   int    `mapstructure:"max_general_files"`
	UploadWorkers     int    `mapstructure:"upload_workers"`

	Location   *time.Location         `mapstructure:"-"`
	AdminScope booking.SelectionScope `mapstructure:"-"`
}

// Limits returns the upload limits handed to the booking service.
func (b BookingConfig) Limits() booking.UploadLimits {
	return booking.UploadLimits{MaxFileBytes: b.MaxFileBytes, MaxGeneralFiles: b.MaxGeneralFiles}
}

type LogsConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type AuditConfig struct {
	ExportInterval time.Duration `mapstructure:"export_interval"`
}

type SeedConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	AdminName     string `mapstructure:"admin_name"`
	AdminCompany  string `mapstructure:"admin_company"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// envAliases keeps the flat variable names used by existing deployments.
var envAliases = map[string][]string{
	"server.port":                 {"SERVER_PORT", "PORT"},
	"database.host":               {"DATABASE_HOST", "DB_HOST"},
	"database.port":               {"DATABASE_PORT", "DB_PORT"},
	"database.user":               {"DATABASE_USER", "DB_USER"},
	"database.password":           {"DATABASE_PASSWORD", "DB_PASSWORD"},
	"database.name":               {"DATABASE_NAME", "DB_NAME"},
	"database.sslmode":            {"DATABASE_SSLMODE", "DB_SSLMODE"},
	"database.driver":             {"DATABASE_DRIVER", "DB_DRIVER"},
	"database.dsn":                {"DATABASE_DSN", "DATABASE_URL"},
	"jwt.expiration_hours":        {"JWT_EXPIRATION_HOURS"},
	"booking.timezone":            {"BOOKING_TIMEZONE"},
	"booking.admin_project_scope": {"BOOKING_ADMIN_PROJECT_SCOPE", "ADMIN_PROJECT_SCOPE"},
	"booking.max_file_bytes":      {"BOOKING_MAX_FILE_BYTES", "UPLOAD_MAX_FILE_BYTES"},
	"logs.level":                  {"LOGS_LEVEL", "LOG_LEVEL"},
	"logs.format":                 {"LOGS_FORMAT", "LOG_FORMAT"},
	"audit.export_interval":       {"AUDIT_EXPORT_INTERVAL"},
	"seed.admin_email":            {"SEED_ADMIN_EMAIL", "ADMIN_EMAIL"},
	"seed.admin_password":         {"SEED_ADMIN_PASSWORD", "ADMIN_PASSWORD"},
	"security.encryption_key":     {"SECURITY_ENCRYPTION_KEY", "ENCRYPTION_KEY"},
}

// Load reads configuration from .env, an optional YAML file and the
// environment, in increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.body_limit_mb", 50)
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "sitevisit")
	v.SetDefault("database.password", "sitevisit_secret")
	v.SetDefault("database.name", "sitevisit")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "")
	v.SetDefault("minio.access_key", "sitevisit")
	v.SetDefault("minio.secret_key", "sitevisit_secret")
	v.SetDefault("minio.bucket", "sitevisit")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.presign_expiry", "15m")

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration_hours", 24)

	v.SetDefault("booking.timezone", "UTC")
	v.SetDefault("booking.admin_project_scope", string(booking.SelectionScopeAssigned))
	v.SetDefault("booking.max_file_bytes", booking.DefaultMaxFileBytes)
	v.SetDefault("booking.max_general_files", booking.DefaultMaxGeneralFiles)
	v.SetDefault("booking.upload_workers", 4)

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "json")
	v.SetDefault("logs.file", "")

	v.SetDefault("audit.export_interval", "1h")

	v.SetDefault("seed.admin_email", "")
	v.SetDefault("seed.admin_password", "")
	v.SetDefault("seed.admin_name", "Administrator")
	v.SetDefault("seed.admin_company", "Site Visit")

	v.SetDefault("security.encryption_key", "")
}

func validate(c *Config) error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres, mysql or sqlite, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret must not be empty")
	}
	if c.JWT.ExpirationHours <= 0 {
		return errors.New("jwt.expiration_hours must be positive")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port must not be empty")
	}

	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	c.Booking.Location = loc

	scope, err := booking.ParseSelectionScope(c.Booking.AdminProjectScope)
	if err != nil {
		return fmt.Errorf("booking.admin_project_scope: %w", err)
	}
	c.Booking.AdminScope = scope

	if c.Booking.MaxFileBytes <= 0 {
		return errors.New("booking.max_file_bytes must be positive")
	}
	if c.Booking.MaxGeneralFiles <= 0 {
		return errors.New("booking.max_general_files must be positive")
	}
	if c.Audit.ExportInterval <= 0 {
		return errors.New("audit.export_interval must be positive")
	}
	if (c.Seed.AdminEmail == "") != (c.Seed.AdminPassword == "") {
		return errors.New("seed.admin_email and seed.admin_password must be set together")
	}
	if c.Seed.AdminPassword != "" && len(c.Seed.AdminPassword) < 8 {
		return errors.New("seed.admin_password must be at least 8 characters")
	}
	if c.Security.EncryptionKey == "" {
		c.Security.EncryptionKey = c.JWT.Secret
	}
	if c.MinIO.PublicEndpoint == "" {
		c.MinIO.PublicEndpoint = c.MinIO.Endpoint
	}
	return nil
}

// DataSource builds the driver-specific DSN unless one is configured.
func (d DBConfig) DataSource() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "sqlite":
		if d.Name == "" {
			return "sitevisit.db"
		}
		return d.Name
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
	}
}
