// Package config carga la configuración: defaults, YAML opcional y entorno.
// Precedencia: env > archivo > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	PathEnvVar = "CONFIG_PATH"
	EnvPrefix  = "PETCLINIC_"

	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"
	AuthModeDev    = "dev"
)

type Config struct {
	App    AppConfig    `koanf:"app"`
	Server ServerConfig `koanf:"server"`
	Log    LogConfig    `koanf:"log"`
	DB     DBConfig     `koanf:"db"`
	Auth   AuthConfig   `koanf:"auth"`
	API    APIConfig    `koanf:"api"`
	HTTP   HTTPConfig   `koanf:"http"`
}

type AppConfig struct {
	Name string `koanf:"name" validate:"required"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// DBConfig: DSN vacío => data engine en memoria.
type DBConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type AuthConfig struct {
	Mode                string        `koanf:"mode" validate:"oneof=jwt remote dev"`
	JWTSecret           string        `koanf:"jwt_secret" validate:"required_if=Mode jwt,omitempty,min=32"`
	Issuer              string        `koanf:"issuer"`
	TokenTTL            time.Duration `koanf:"token_ttl" validate:"gt=0"`
	Leeway              time.Duration `koanf:"leeway" validate:"min=0"`
	RejectInvalidTokens bool          `koanf:"reject_invalid_tokens"`
	Remote              RemoteConfig  `koanf:"remote"`
}

type RemoteConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int `koanf:"max_page_size" validate:"min=1,gtefield=DefaultPageSize"`
}

type HTTPConfig struct {
	RateLimit   int           `koanf:"rate_limit" validate:"min=0"`
	RateWindow  time.Duration `koanf:"rate_window" validate:"gt=0"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name": "pet-clinic-backend",

		"server.port":             8080,
		"server.read_timeout":     "5s",
		"server.write_timeout":    "10s",
		"server.shutdown_timeout": "15s",

		"log.level":  "info",
		"log.format": "text",

		"db.dsn":               "",
		"db.max_open_conns":    10,
		"db.max_idle_conns":    5,
		"db.conn_max_lifetime": "30m",

		"auth.mode":                  AuthModeJWT,
		"auth.issuer":                "pet-clinic-backend",
		"auth.token_ttl":             "1h",
		"auth.leeway":                "0s",
		"auth.reject_invalid_tokens": false,
		"auth.remote.timeout":        "5s",

		"api.default_page_size": 50,
		"api.max_page_size":     200,

		"http.rate_limit":   100,
		"http.rate_window":  "1m",
		"http.cors_origins": []string{"*"},
	}
}

// legacyEnv son las variables que el servicio ya leía antes de koanf.
var legacyEnv = map[string]string{
	"PORT":       "server.port",
	"DB_DSN":     "db.dsn",
	"LOG_LEVEL":  "log.level",
	"LOG_FORMAT": "log.format",
	"APP_NAME":   "app.name",
}

var sliceKeys = []string{"http.cors_origins"}

// Load arma la configuración y la valida.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv(PathEnvVar)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", TransformEnv), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TransformEnv: PETCLINIC_AUTH__JWT_SECRET => auth.jwt_secret, más las
// variables legacy. Devuelve "" para ignorar la variable.
func TransformEnv(key string) string {
	if path, ok := legacyEnv[key]; ok {
		return path
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(key, "__", "."))
}

// splitSlices convierte "a, b" (desde env) en []string.
func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	if c.Auth.Mode == AuthModeRemote && (c.Auth.Remote.BaseURL == "" || c.Auth.Remote.APIKey == "") {
		return errors.New("config: invalid: auth.remote.base_url and auth.remote.api_key are required in remote mode")
	}
	return nil
}
