// Package config loads the YAML configuration file. Every field carries a
// default in its struct tag, so a missing file yields a usable configuration.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Features FeaturesConfig `yaml:"features"`
	Diff     DiffConfig     `yaml:"diff"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name string `yaml:"name" default:"Wiki"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

type StorageConfig struct {
	DraftDir string `yaml:"draft_dir" default:"draft"`

	// Backend selects the live page store: fs, sqlite or s3.
	Backend     string   `yaml:"backend" default:"fs"`
	PagesDir    string   `yaml:"pages_dir" default:"wiki"`
	SQLitePath  string   `yaml:"sqlite_path" default:"wiki.db"`
	Compression string   `yaml:"compression" default:"zstd"`
	S3          S3Config `yaml:"s3"`
}

// S3Config locates the bucket. Credentials come from the environment.
type S3Config struct {
	Bucket   string `yaml:"bucket" default:""`
	Prefix   string `yaml:"prefix" default:"pages"`
	Endpoint string `yaml:"endpoint" default:""`
	Region   string `yaml:"region" default:"auto"`
}

type FeaturesConfig struct {
	ReadOnly       bool       `yaml:"read_only" default:"false"`
	Authentication AuthConfig `yaml:"authentication"`
	// FrozenPages can be viewed but never edited through drafts.
	FrozenPages []string `yaml:"frozen_pages" default:""`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Type    string `yaml:"type" default:"ed25519"`
	// UserID names the single editor of the ed25519 provider.
	UserID string `yaml:"user_id" default:"admin"`
	// TicketTTL bounds how long an opened editor may keep saving.
	TicketTTL string `yaml:"ticket_ttl" default:"2h"`
}

// TicketDuration parses TicketTTL. Validate guarantees it parses.
func (a AuthConfig) TicketDuration() time.Duration {
	d, _ := time.ParseDuration(a.TicketTTL)
	return d
}

type DiffConfig struct {
	Style   string `yaml:"style" default:"gruvbox"`
	Context int    `yaml:"context" default:"3"`
}

const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"

	AuthTypeEd25519 = "ed25519"
	AuthTypeClerk   = "clerk"
)

// Validate checks the values defaults cannot guarantee.
func (c *Config) Validate() error {
	return validation.Errors{
		"storage": validation.ValidateStruct(&c.Storage,
			validation.Field(&c.Storage.DraftDir, validation.Required),
			validation.Field(&c.Storage.Backend, validation.Required, validation.In(BackendFS, BackendSQLite, BackendS3)),
			validation.Field(&c.Storage.Compression, validation.In("zstd", "gzip", "none")),
			validation.Field(&c.Storage.PagesDir, validation.When(c.Storage.Backend == BackendFS, validation.Required)),
			validation.Field(&c.Storage.SQLitePath, validation.When(c.Storage.Backend == BackendSQLite, validation.Required)),
		),
		"storage.s3": validation.ValidateStruct(&c.Storage.S3,
			validation.Field(&c.Storage.S3.Bucket, validation.When(c.Storage.Backend == BackendS3, validation.Required)),
		),
		"features.authentication": validation.ValidateStruct(&c.Features.Authentication,
			validation.Field(&c.Features.Authentication.Type, validation.In(AuthTypeEd25519, AuthTypeClerk)),
			validation.Field(&c.Features.Authentication.TicketTTL, validation.Required, validation.By(positiveDuration)),
		),
		"diff": validation.ValidateStruct(&c.Diff,
			validation.Field(&c.Diff.Context, validation.Min(0)),
		),
	}.Filter()
}

func positiveDuration(value interface{}) error {
	s, _ := value.(string)
	d, err := time.ParseDuration(s)
	if err != nil {
		return validation.NewError("validation_duration", "must be a duration such as 90m or 2h")
	}
	if d <= 0 {
		return validation.NewError("validation_duration_positive", "must be positive")
	}
	return nil
}

// LoadConfig reads path on top of the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		return config, nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return config, nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
