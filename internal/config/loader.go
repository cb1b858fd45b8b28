package config

import (
	stderrors "errors"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "DEADLINE"

// Sentinel errors returned by the loaders. Match them with errors.Is.
var (
	ErrConfigFileNotFound = errors.New(errors.ErrCodeNotFound, "config file not found")
	ErrConfigParseError   = errors.New(errors.ErrCodeSerialization, "config file could not be parsed")
	ErrConfigValidation   = errors.New(errors.ErrCodeValidation, "config validation failed")
)

// DefaultSearchPaths are tried, in order, for a file named config.yaml when
// no explicit path is given.
var DefaultSearchPaths = []string{".", "./configs", "/etc/deadline-agent"}

type loadOptions struct {
	path        string
	searchPaths []string
	overrides   map[string]interface{}
}

// Option customizes Load.
type Option func(*loadOptions)

// WithConfigPath loads exactly this file; a missing file is an error.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.path = path }
}

// WithSearchPaths replaces DefaultSearchPaths.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) { o.searchPaths = paths }
}

// WithOverrides sets keys (dotted, e.g. "server.http.port") that win over
// both the file and the environment.
func WithOverrides(overrides map[string]interface{}) Option {
	return func(o *loadOptions) { o.overrides = overrides }
}

// newViper builds a Viper instance with YAML type, the DEADLINE_ env prefix,
// a "." → "_" key replacer and every Config key bound to its variable, so
// DEADLINE_SERVER_HTTP_PORT reaches server.http.port even without a file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("extraction.date_parser_enabled", true)
	v.SetDefault("extraction.ai_fallback_enabled", true)
	v.SetDefault("metrics.enabled", true)
	bindEnvs(v, reflect.TypeOf(Config{}), "")
	return v
}

var durationType = reflect.TypeOf(time.Duration(0))

func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type != durationType {
			bindEnvs(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// Load reads the configuration file (explicit path or the first config.yaml
// in the search paths), merges DEADLINE_* environment variables and
// overrides, applies defaults and validates the result.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{searchPaths: DefaultSearchPaths}
	for _, opt := range opts {
		opt(&o)
	}

	v := newViper()
	if o.path != "" {
		v.SetConfigFile(o.path)
		if err := readConfig(v); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
		if err := readConfig(v); err != nil && !errors.Is(err, ErrConfigFileNotFound) {
			return nil, err
		}
	}
	for k, val := range o.overrides {
		v.Set(k, val)
	}
	return unmarshalAndFinalize(v)
}

func readConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if stderrors.As(err, &notFound) || stderrors.Is(err, fs.ErrNotExist) {
		return ErrConfigFileNotFound.WithCause(err)
	}
	return ErrConfigParseError.WithCause(err)
}

// LoadFromFile is Load(WithConfigPath(path)).
func LoadFromFile(path string) (*Config, error) {
	return Load(WithConfigPath(path))
}

// LoadFromEnv builds a Config from DEADLINE_* variables and defaults only.
//
//	DEADLINE_<SECTION>_<FIELD>   e.g. DEADLINE_AI_MODEL_API_KEY
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, ErrConfigParseError.WithCause(err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, ErrConfigValidation.WithCause(err)
	}
	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and hands the new
// Config to onChange. Invalid revisions are passed to onError, when set, and
// never reach onChange. Callers are expected to apply only the settings that
// are safe to change at runtime, such as the log level.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := readConfig(v); err != nil {
		return err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is Load that panics on error, for use in main.
func MustLoad(opts ...Option) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic("config: " + err.Error())
	}
	return cfg
}
