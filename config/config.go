package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "16KB"

	// StoreDriverPostgres selects the GORM/PostgreSQL credential store.
	StoreDriverPostgres = "postgres"
	// StoreDriverMemory selects the in-process credential store (development and tests).
	StoreDriverMemory = "memory"
)

// OWASP argon2id baseline and session defaults.
const (
	defaultSessionTTL        = time.Hour
	defaultMinPasswordLength = 8
	defaultMaxPasswordLength = 128
	defaultArgon2Memory      = 64 * 1024
	defaultArgon2Iterations  = 1
	defaultArgon2Parallelism = 4
	defaultArgon2SaltLength  = 16
	defaultArgon2KeyLength   = 32
	defaultLoginPerMinute    = 10
	defaultLoginBurst        = 5
	defaultLimiterCleanup    = 5 * time.Minute
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		// TrustedProxies lists the CIDRs allowed to set X-Forwarded-For. When empty the
		// client address is the TCP peer and forwarding headers are ignored.
		TrustedProxies []string `json:"trustedProxies" yaml:"trustedProxies"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Store StoreConfig `json:"store" yaml:"store"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// SecretKey holds signing material. It is expected from the environment (SECRETKEY_SESSION).
	SecretKey struct {
		Session string `json:"session" yaml:"session"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	RateLimit *RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`
}

// StoreConfig selects the credential store implementation.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	// Migrate applies the embedded schema migrations on startup (postgres only).
	Migrate bool `json:"migrate" yaml:"migrate"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	SessionTTL        time.Duration `json:"sessionTTL" yaml:"sessionTTL"`
	MinPasswordLength int           `json:"minPasswordLength" yaml:"minPasswordLength"`
	MaxPasswordLength int           `json:"maxPasswordLength" yaml:"maxPasswordLength"`
	Argon2            Argon2Config  `json:"argon2" yaml:"argon2"`
}

// Argon2Config defines the argon2id cost parameters used for new hashes.
// Existing hashes carry their own parameters and keep verifying after a change.
type Argon2Config struct {
	Memory      uint32 `json:"memory" yaml:"memory"` // KiB
	Iterations  uint32 `json:"iterations" yaml:"iterations"`
	Parallelism uint8  `json:"parallelism" yaml:"parallelism"`
	SaltLength  uint32 `json:"saltLength" yaml:"saltLength"`
	KeyLength   uint32 `json:"keyLength" yaml:"keyLength"`
}

// RateLimitConfig defines the per-client limiter in front of the login endpoint.
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	RequestsPerMinute float64       `json:"requestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int           `json:"burst" yaml:"burst"`
	CleanupInterval   time.Duration `json:"cleanupInterval" yaml:"cleanupInterval"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: SECRETKEY_SESSION -> secretKey.session (not secretkey.session)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Case-insensitive to match env vars
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.Postgres != nil {
		// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverPostgres
	}

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = defaultSessionTTL
	}
	if cfg.Auth.MinPasswordLength <= 0 {
		cfg.Auth.MinPasswordLength = defaultMinPasswordLength
	}
	if cfg.Auth.MaxPasswordLength <= 0 {
		cfg.Auth.MaxPasswordLength = defaultMaxPasswordLength
	}

	argon := &cfg.Auth.Argon2
	if argon.Memory == 0 {
		argon.Memory = defaultArgon2Memory
	}
	if argon.Iterations == 0 {
		argon.Iterations = defaultArgon2Iterations
	}
	if argon.Parallelism == 0 {
		argon.Parallelism = defaultArgon2Parallelism
	}
	if argon.SaltLength == 0 {
		argon.SaltLength = defaultArgon2SaltLength
	}
	if argon.KeyLength == 0 {
		argon.KeyLength = defaultArgon2KeyLength
	}

	if cfg.RateLimit == nil {
		cfg.RateLimit = &RateLimitConfig{Enabled: true}
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = defaultLoginPerMinute
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultLoginBurst
	}
	if cfg.RateLimit.CleanupInterval <= 0 {
		cfg.RateLimit.CleanupInterval = defaultLimiterCleanup
	}
}

func (cfg *Config) validate() error {
	switch cfg.Store.Driver {
	case StoreDriverPostgres:
		if cfg.Postgres == nil {
			return errors.New("postgres store selected but postgres config is missing")
		}
	case StoreDriverMemory:
	default:
		return errors.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}

	for _, cidr := range cfg.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return errors.Wrapf(err, "invalid http.trustedProxies entry %q", cidr)
		}
	}

	if cfg.Auth.MinPasswordLength > cfg.Auth.MaxPasswordLength {
		return errors.Errorf("auth.minPasswordLength (%d) exceeds auth.maxPasswordLength (%d)",
			cfg.Auth.MinPasswordLength, cfg.Auth.MaxPasswordLength)
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
