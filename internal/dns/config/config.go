package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds the process configuration. It is loaded once at startup and
// handed to the proxy as a plain record.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Verbose logs every datagram. It forces the debug level.
	Verbose bool `koanf:"verbose"`

	// Port is the UDP port the proxy listens on for clients.
	Port int `koanf:"port" validate:"required,gte=1,lte=65535"`

	// Resolver is the upstream resolver, an IPv4 literal or a hostname.
	Resolver string `koanf:"resolver" validate:"required,resolver_host"`

	// ResolverPort is the upstream UDP port.
	ResolverPort int `koanf:"resolver_port" validate:"required,gte=1,lte=65535"`

	// BufferSize is the receive buffer capacity; larger datagrams are truncated.
	BufferSize int `koanf:"buffer_size" validate:"required,gte=12,lte=65535"`

	Blacklist BlacklistConfig `koanf:"blacklist"`
	Tap       TapConfig       `koanf:"tap"`
}

// BlacklistConfig selects where blacklist entries come from and how lookups are accelerated.
type BlacklistConfig struct {
	// File is a newline-delimited text blacklist.
	File string `koanf:"file" validate:"required_without=DB"`
	// DB is a compiled bbolt snapshot written by "blacklist import".
	DB string `koanf:"db"`
	// CacheSize bounds the per-name decision cache. Zero disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`
	// FPRate is the Bloom prefilter false-positive target.
	FPRate float64 `koanf:"fp_rate" validate:"gt=0,lt=1"`
	// MaxEntries caps the number of loaded entries. Zero means unlimited.
	MaxEntries int `koanf:"max_entries" validate:"gte=0"`
}

// TapConfig enables the dnstap trace. At most one destination may be set.
type TapConfig struct {
	File   string `koanf:"file" validate:"excluded_with=Socket"`
	Socket string `koanf:"socket"`
}

// LoadOptions carries the layers that come from the command line.
type LoadOptions struct {
	// File is an optional YAML config file.
	File string
	// Overrides holds explicitly set flags, keyed by koanf path.
	Overrides map[string]any
}

// DEFAULT_APP_CONFIG defines the default configuration. Resolver and the
// blacklist source have no defaults and must be supplied.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:          "prod",
	LogLevel:     "info",
	Verbose:      false,
	Port:         53,
	ResolverPort: 53,
	BufferSize:   1000,
	Blacklist: BlacklistConfig{
		CacheSize:  4096,
		FPRate:     0.01,
		MaxEntries: 0,
	},
}

// envSections are the nested config sections reachable from the environment,
// e.g. DNS_BLACKLIST_CACHE_SIZE → blacklist.cache_size.
var envSections = []string{"blacklist", "tap"}

// envKey maps an environment variable name to its koanf path.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "DNS_"))
	for _, s := range envSections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return key
}

// validResolverHost accepts an IPv4 literal or an RFC 1123 hostname.
func validResolverHost(fl validator.FieldLevel) bool {
	host := fl.Field().String()
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Is4()
	}
	return isHostname(host)
}

func isHostname(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}
	allDigits := true
	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
				allDigits = false
			case c >= '0' && c <= '9':
			default:
				return false
			}
		}
	}
	// a dotted all-numeric name is a malformed address, not a hostname
	return !allDigits
}

// defaultLoader loads DEFAULT_APP_CONFIG using the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads an optional YAML file. An empty path is a no-op.
var fileLoader = func(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

// envLoader loads environment variables with the prefix "DNS_".
// It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key), strings.TrimSpace(value)
		},
	}), nil)
}

// overrideLoader applies explicitly set command-line flags last.
var overrideLoader = func(k *koanf.Koanf, overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	return k.Load(confmap.Provider(overrides, "."), nil)
}

// registerValidation registers the "resolver_host" tag with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("resolver_host", validResolverHost)
}

// Load merges defaults, the config file, DNS_ environment variables and flag
// overrides (later layers win), then validates the result.
func Load(opts LoadOptions) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := fileLoader(k, opts.File); err != nil {
		return nil, fmt.Errorf("error loading config file %q: %w", opts.File, err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}
	if err := overrideLoader(k, opts.Overrides); err != nil {
		return nil, fmt.Errorf("error loading flags: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}

// TapEnabled reports whether a dnstap destination is configured.
func (c *AppConfig) TapEnabled() bool {
	return c.Tap.File != "" || c.Tap.Socket != ""
}
