// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// BaseURL canónica del servicio. Vacía => se deriva del request.
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	// Proxy controla la confianza en headers X-Forwarded-*.
	Proxy struct {
		TrustForwarded bool `yaml:"trust_forwarded"`
		// Allow-list de hosts aceptados vía X-Forwarded-Host.
		AllowedForwardedHosts []string `yaml:"allowed_forwarded_hosts"`
	} `yaml:"proxy"`

	Authorize struct {
		// Pattern del inicio de autorización. Default:
		// /oauth2/authorization/{providerId}
		Pattern string `yaml:"pattern"`
		// StateMode: opaque | signed
		StateMode string `yaml:"state_mode"`
		// StateSigningKey: requerida en modo signed (>= 32 bytes).
		StateSigningKey string        `yaml:"state_signing_key"`
		StateTTL        time.Duration `yaml:"state_ttl"`
		LookupTimeout   time.Duration `yaml:"lookup_timeout"`
	} `yaml:"authorize"`

	ControlPlane struct {
		// Driver: fs | postgres
		Driver string `yaml:"driver"`
		FSRoot string `yaml:"fs_root"`
		DSN    string `yaml:"dsn"`
	} `yaml:"control_plane"`

	Cache struct {
		// Kind: memory | redis | off
		Kind string        `yaml:"kind"`
		TTL  time.Duration `yaml:"ttl"`

		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	StateStore struct {
		// Kind: memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"state_store"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		MaxRequests int           `yaml:"max_requests"`
		Window      time.Duration `yaml:"window"`
		// Backend: memory | redis. Con redis usa StateStore.Redis si no
		// se configura uno propio.
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"rate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML, aplica defaults, overrides por env y valida.
// path vacío arranca con la config por defecto (todo env/defaults).
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: leer %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parsear %s: %w", path, err)
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Authorize.Pattern == "" {
		c.Authorize.Pattern = "/oauth2/authorization/{providerId}"
	}
	if c.Authorize.StateMode == "" {
		c.Authorize.StateMode = "opaque"
	}
	if c.Authorize.StateTTL == 0 {
		c.Authorize.StateTTL = 5 * time.Minute
	}
	if c.Authorize.LookupTimeout == 0 {
		c.Authorize.LookupTimeout = 3 * time.Second
	}
	if c.ControlPlane.Driver == "" {
		c.ControlPlane.Driver = "fs"
	}
	if c.ControlPlane.FSRoot == "" {
		c.ControlPlane.FSRoot = "./data/authgate"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * time.Second
	}
	if c.StateStore.Kind == "" {
		c.StateStore.Kind = "memory"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.ControlPlane.Driver {
	case "fs":
	case "postgres":
		if strings.TrimSpace(c.ControlPlane.DSN) == "" {
			return fmt.Errorf("config: control_plane.dsn requerido con driver postgres")
		}
	default:
		return fmt.Errorf("config: control_plane.driver desconocido %q", c.ControlPlane.Driver)
	}

	switch c.Authorize.StateMode {
	case "opaque":
	case "signed":
		if len(c.Authorize.StateSigningKey) < 32 {
			return fmt.Errorf("config: authorize.state_signing_key requiere al menos 32 bytes en modo signed")
		}
	default:
		return fmt.Errorf("config: authorize.state_mode desconocido %q", c.Authorize.StateMode)
	}

	switch c.StateStore.Kind {
	case "memory":
	case "redis":
		if c.StateStore.Redis.Addr == "" {
			return fmt.Errorf("config: state_store.redis.addr requerido")
		}
	default:
		return fmt.Errorf("config: state_store.kind desconocido %q", c.StateStore.Kind)
	}

	switch c.Cache.Kind {
	case "memory", "off":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("config: cache.redis.addr requerido")
		}
	default:
		return fmt.Errorf("config: cache.kind desconocido %q", c.Cache.Kind)
	}

	// Con forwarded habilitado y sin allow-list, los headers se ignoran
	// siempre. Probablemente un error de despliegue: avisamos temprano.
	if c.Proxy.TrustForwarded && len(c.Proxy.AllowedForwardedHosts) == 0 {
		return fmt.Errorf("config: proxy.trust_forwarded requiere proxy.allowed_forwarded_hosts")
	}
	return nil
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("HTTP_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvBool("PROXY_TRUST_FORWARDED"); ok {
		c.Proxy.TrustForwarded = v
	}
	if v, ok := getEnvCSV("PROXY_ALLOWED_FORWARDED_HOSTS"); ok {
		c.Proxy.AllowedForwardedHosts = v
	}
	if v, ok := getEnvStr("AUTHORIZE_PATTERN"); ok {
		c.Authorize.Pattern = v
	}
	if v, ok := getEnvStr("AUTHORIZE_STATE_MODE"); ok {
		c.Authorize.StateMode = v
	}
	if v, ok := getEnvStr("AUTHORIZE_STATE_SIGNING_KEY"); ok {
		c.Authorize.StateSigningKey = v
	}
	if v, ok := getEnvDur("AUTHORIZE_STATE_TTL"); ok {
		c.Authorize.StateTTL = v
	}
	if v, ok := getEnvDur("AUTHORIZE_LOOKUP_TIMEOUT"); ok {
		c.Authorize.LookupTimeout = v
	}
	if v, ok := getEnvStr("CONTROL_PLANE_DRIVER"); ok {
		c.ControlPlane.Driver = v
	}
	if v, ok := getEnvStr("CONTROL_PLANE_FS_ROOT"); ok {
		c.ControlPlane.FSRoot = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.ControlPlane.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvDur("CACHE_TTL"); ok {
		c.Cache.TTL = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		// Un único Redis para cache, state store y rate si no se
		// configuran direcciones específicas.
		if c.Cache.Redis.Addr == "" {
			c.Cache.Redis.Addr = v
		}
		if c.StateStore.Redis.Addr == "" {
			c.StateStore.Redis.Addr = v
		}
		if c.Rate.Redis.Addr == "" {
			c.Rate.Redis.Addr = v
		}
	}
	if v, ok := getEnvStr("STATE_STORE_KIND"); ok {
		c.StateStore.Kind = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}
