// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lightpages.
//
// go-lightpages is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads lightpages settings from defaults, an optional
// lightpages.yaml, the project's .env file, environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable without a legacy name.
	EnvPrefix = "LIGHTPAGES"

	// FileName is the config file searched for when none is given.
	FileName = "lightpages"

	// DotEnvFile is read from the project root when present.
	DotEnvFile = ".env"
)

// Config is the root configuration struct.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	CSP        CSPConfig        `mapstructure:"csp"`
	CDN        CDNConfig        `mapstructure:"cdn"`
	Images     ImagesConfig     `mapstructure:"images"`
	Stylesheet StylesheetConfig `mapstructure:"stylesheet"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Root            string        `mapstructure:"root" validate:"required"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Env             string        `mapstructure:"env"`
	Production      bool          `mapstructure:"production"`
	SGTMURL         string        `mapstructure:"sgtm_url" validate:"omitempty,url"`
	CompressMinSize int           `mapstructure:"compress_min_size" validate:"min=0"`
	BustRate        float64       `mapstructure:"bust_rate" validate:"min=0"`
	BustBurst       int           `mapstructure:"bust_burst" validate:"min=1"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	TLSCert         string        `mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey          string        `mapstructure:"tls_key" validate:"required_with=TLSCert"`
	SelfSigned      bool          `mapstructure:"self_signed"`
	MetricsToken    string        `mapstructure:"metrics_token"`
}

// IsProduction reports whether production mode is on, either explicitly or
// through NODE_ENV=production.
func (s ServerConfig) IsProduction() bool {
	return s.Production || strings.EqualFold(s.Env, "production")
}

// CSPConfig lists extra origins per Content-Security-Policy directive.
type CSPConfig struct {
	ScriptSources  []string `mapstructure:"script_sources"`
	ImgSources     []string `mapstructure:"img_sources"`
	ConnectSources []string `mapstructure:"connect_sources"`
}

// CDNConfig selects and configures the object store images are mirrored to.
type CDNConfig struct {
	Backend      string            `mapstructure:"backend" validate:"required,oneof=spaces s3 minio gcs azure local memory"`
	Region       string            `mapstructure:"region"`
	AccessKey    string            `mapstructure:"access_key"`
	AccessSecret string            `mapstructure:"access_secret"`
	Bucket       string            `mapstructure:"bucket"`
	BaseURL      string            `mapstructure:"base_url" validate:"omitempty,url"`
	Endpoint     string            `mapstructure:"endpoint"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Settings     map[string]string `mapstructure:"settings"`
}

// ImagesConfig sizes the image pipeline and selects its policies.
type ImagesConfig struct {
	Workers                          int    `mapstructure:"workers" validate:"min=1"`
	QueueSize                        int    `mapstructure:"queue_size" validate:"min=1"`
	CWebP                            string `mapstructure:"cwebp" validate:"required"`
	Quality                          int    `mapstructure:"quality" validate:"min=0,max=100"`
	UploadOriginalOnTranscodeFailure bool   `mapstructure:"upload_original_on_transcode_failure"`
	RetractDerivative                bool   `mapstructure:"retract_derivative"`
}

// StylesheetConfig locates the cached stylesheet.
type StylesheetConfig struct {
	Path     string        `mapstructure:"path" validate:"required"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json console"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile overrides the lightpages.yaml search.
	ConfigFile string

	// Flags are bound when explicitly set (can be nil).
	Flags *pflag.FlagSet
}

// legacyEnv binds keys to the environment names the site has always used.
// The prefixed name is checked first.
var legacyEnv = map[string]string{
	"server.port":       "PORT",
	"server.env":        "NODE_ENV",
	"server.sgtm_url":   "SGTM_URL",
	"cdn.region":        "CDN_REGION",
	"cdn.access_key":    "CDN_ACCESS_KEY",
	"cdn.access_secret": "CDN_ACCESS_SECRET",
	"cdn.bucket":        "CDN_BUCKET_NAME",
	"cdn.base_url":      "CDN_BASEURL",
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"root":        "server.root",
	"host":        "server.host",
	"port":        "server.port",
	"production":  "server.production",
	"tls-cert":    "server.tls_cert",
	"tls-key":     "server.tls_key",
	"self-signed": "server.self_signed",
	"backend":     "cdn.backend",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so AutomaticEnv can see it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.root", ".")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.env", "")
	v.SetDefault("server.production", false)
	v.SetDefault("server.sgtm_url", "")
	v.SetDefault("server.compress_min_size", 1024)
	v.SetDefault("server.bust_rate", 0.0)
	v.SetDefault("server.bust_burst", 10)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("server.self_signed", false)
	v.SetDefault("server.metrics_token", "")

	v.SetDefault("csp.script_sources", []string{})
	v.SetDefault("csp.img_sources", []string{})
	v.SetDefault("csp.connect_sources", []string{})

	v.SetDefault("cdn.backend", "spaces")
	v.SetDefault("cdn.region", "")
	v.SetDefault("cdn.access_key", "")
	v.SetDefault("cdn.access_secret", "")
	v.SetDefault("cdn.bucket", "")
	v.SetDefault("cdn.base_url", "")
	v.SetDefault("cdn.endpoint", "")
	v.SetDefault("cdn.timeout", 60*time.Second)

	v.SetDefault("images.workers", 1)
	v.SetDefault("images.queue_size", 256)
	v.SetDefault("images.cwebp", "cwebp")
	v.SetDefault("images.quality", 80)
	v.SetDefault("images.upload_original_on_transcode_failure", false)
	v.SetDefault("images.retract_derivative", false)

	v.SetDefault("stylesheet.path", filepath.Join("public", "css", "style.css"))
	v.SetDefault("stylesheet.debounce", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

func prefixed(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > .env > config file > defaults
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		if err := v.BindEnv(key, prefixed(key), name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	// 3. Bind flags (if provided)
	if opts.Flags != nil {
		bindFlags(v, opts.Flags)
	}

	// 4. Read the config file, then the project's .env over it
	root := v.GetString("server.root")
	if err := readConfigFile(v, opts.ConfigFile, root); err != nil {
		return nil, err
	}
	if err := mergeDotEnv(v, filepath.Join(root, DotEnvFile)); err != nil {
		return nil, err
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CDN.applyDefaults()

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func readConfigFile(v *viper.Viper, file, root string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(root)
	if root != "." {
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// mergeDotEnv layers values from a dotenv file over the config file. Both
// the legacy names and the prefixed names are recognized.
func mergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	values := make(map[string]any)
	for _, key := range v.AllKeys() {
		names := []string{prefixed(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		for _, name := range names {
			// dotenv keys are lowercased by viper
			if val := env.GetString(strings.ToLower(name)); env.IsSet(strings.ToLower(name)) {
				setNested(values, key, val)
				break
			}
		}
	}
	if len(values) == 0 {
		return nil
	}
	return v.MergeConfigMap(values)
}

func setNested(m map[string]any, key string, val any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = val
}
