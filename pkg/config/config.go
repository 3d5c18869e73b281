// Package config builds the explicit configuration value shared by every
// channel. It is constructed once at startup and passed down; nothing reads
// the environment at scoring time.
//
// Values are resolved in this order, later sources winning:
//
//  1. built-in defaults
//  2. an optional YAML file
//  3. .env files (ENV_FILE if set, otherwise .env.local then .env); these only
//     fill variables that are not already set in the process environment
//  4. environment variables named by `env` struct tags
//
// Example YAML:
//
//	lookup:
//	  host: instagram-scraper.p.rapidapi.com
//	  timeout: 20s
//	ocr:
//	  binary: /usr/local/bin/tesseract
//	cache:
//	  ttl: 24h
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultLookupTimeout = 20 * time.Second
	DefaultOCRTimeout    = 20 * time.Second
	DefaultCacheTTL      = 24 * time.Hour
	DefaultMinDelay      = 1100 * time.Millisecond
)

// Config is the complete runtime configuration.
type Config struct {
	Lookup Lookup `yaml:"lookup"`
	OCR    OCR    `yaml:"ocr"`
	Cache  Cache  `yaml:"cache"`
}

// Lookup configures the third-party profile lookup service.
type Lookup struct {
	APIKey   string        `yaml:"api_key"   env:"RAPIDAPI_KEY"`
	Host     string        `yaml:"host"      env:"RAPIDAPI_HOST"`
	BaseURL  string        `yaml:"base_url"  env:"SOCKPUPPET_LOOKUP_URL"` // defaults to https://<host>
	Timeout  time.Duration `yaml:"timeout"   env:"SOCKPUPPET_LOOKUP_TIMEOUT"`
	MinDelay time.Duration `yaml:"min_delay" env:"SOCKPUPPET_LOOKUP_MIN_DELAY"`
}

// Configured reports whether the credentials needed for a lookup are present.
func (l Lookup) Configured() bool {
	return strings.TrimSpace(l.APIKey) != "" && strings.TrimSpace(l.Host) != ""
}

// Endpoint returns the base URL requests are sent to.
func (l Lookup) Endpoint() string {
	if l.BaseURL != "" {
		return strings.TrimRight(l.BaseURL, "/")
	}
	return "https://" + l.Host
}

// OCR configures screenshot text extraction.
type OCR struct {
	Binary   string        `yaml:"binary"   env:"TESSERACT_CMD"` // empty means search PATH
	Language string        `yaml:"language" env:"SOCKPUPPET_OCR_LANG"`
	Timeout  time.Duration `yaml:"timeout"  env:"SOCKPUPPET_OCR_TIMEOUT"`
}

// Cache configures the on-disk cache of lookup responses.
type Cache struct {
	Dir      string        `yaml:"dir"      env:"SOCKPUPPET_CACHE_DIR"` // empty means the user cache directory
	TTL      time.Duration `yaml:"ttl"      env:"SOCKPUPPET_CACHE_TTL"`
	Disabled bool          `yaml:"disabled" env:"SOCKPUPPET_NO_CACHE"`
}

// Default returns a Config with built-in defaults and no credentials.
func Default() *Config {
	return &Config{
		Lookup: Lookup{Timeout: DefaultLookupTimeout, MinDelay: DefaultMinDelay},
		OCR:    OCR{Timeout: DefaultOCRTimeout},
		Cache:  Cache{TTL: DefaultCacheTTL},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), .env files and the environment.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for values no channel can work with.
// Missing lookup credentials are not an error here: the lookup channel
// reports them per request.
func (c *Config) Validate() error {
	var errs []error
	if c.Lookup.Timeout <= 0 {
		errs = append(errs, errors.New("lookup.timeout must be positive"))
	}
	if c.Lookup.MinDelay < 0 {
		errs = append(errs, errors.New("lookup.min_delay must not be negative"))
	}
	if c.OCR.Timeout <= 0 {
		errs = append(errs, errors.New("ocr.timeout must be positive"))
	}
	if !c.Cache.Disabled && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local and .env.
// Missing files are ignored. Variables already in the environment are kept.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// applyEnvOverrides sets fields from the environment variables named by their `env` tags.
func applyEnvOverrides(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return applyEnvToStruct(v)
}

func applyEnvToStruct(v reflect.Value) error {
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		val, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		if err := setField(field, strings.TrimSpace(val)); err != nil {
			return fmt.Errorf("environment variable %s: %w", name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, val string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int64:
		if field.Type() != reflect.TypeFor[time.Duration]() {
			return fmt.Errorf("unsupported field type %s", field.Type())
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			b = strings.EqualFold(val, "yes")
			if !b && !strings.EqualFold(val, "no") {
				return err
			}
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
