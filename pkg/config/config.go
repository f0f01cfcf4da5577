package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	HTTP     HTTPConfig
	Identity IdentityConfig
	Feed     FeedConfig
	Redis    RedisConfig
	Jobs     JobsConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DefaultPolicyRole rol sin BYPASSRLS que crea la migración si DB_POLICY_ROLE no se define.
const DefaultPolicyRole = "beras_policy"

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	Driver      string // postgres | memory
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	// PolicyRole rol de PostgreSQL sin BYPASSRLS al que se cambia (SET LOCAL ROLE)
	// dentro de las transacciones acotadas por política. Obligatorio con Driver postgres.
	PolicyRole string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig verificación de los bearer tokens emitidos por el Identity Store.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos (solo para tokens emitidos localmente en desarrollo)
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IdentityConfig API de backend del Identity Store. SecretKey y WebhookSecret solo viven
// en el servidor; nunca se envían a un navegador.
type IdentityConfig struct {
	APIURL        string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// FeedConfig feed externo de inventario.
type FeedConfig struct {
	URL           string
	Token         string
	Timeout       time.Duration
	AtomicReplace bool
	// Classes nombre de clase -> product_types que se reemplazan juntos.
	Classes map[string][]string
}

// RedisConfig Redis para idempotencia de webhooks y lock de jobs. Addr vacío = deshabilitado.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

// JobsConfig expresiones cron (robfig/cron, con segundos opcionales) de los jobs programados.
type JobsConfig struct {
	Enabled           bool
	RefreshSchedule   string
	ReconcileSchedule string
	LockTTL           time.Duration
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, JWT_SECRET, IDENTITY_SECRET_KEY, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	classes, err := ParseProductClasses(getString(v, "FEED_PRODUCT_CLASSES", "beras=beras"))
	if err != nil {
		return nil, fmt.Errorf("FEED_PRODUCT_CLASSES: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "beras-dashboard"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			Driver:      getString(v, "DB_DRIVER", "postgres"),
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "beras_dashboard"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			PolicyRole:  getString(v, "DB_POLICY_ROLE", DefaultPolicyRole),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", ""),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Identity: IdentityConfig{
			APIURL:        getString(v, "IDENTITY_API_URL", "https://api.clerk.com/v1"),
			SecretKey:     getString(v, "IDENTITY_SECRET_KEY", ""),
			WebhookSecret: getString(v, "IDENTITY_WEBHOOK_SECRET", ""),
			Timeout:       getDuration(v, "IDENTITY_TIMEOUT", 10*time.Second),
		},
		Feed: FeedConfig{
			URL:           getString(v, "FEED_URL", ""),
			Token:         getString(v, "FEED_TOKEN", ""),
			Timeout:       getDuration(v, "FEED_TIMEOUT", 30*time.Second),
			AtomicReplace: getBool(v, "FEED_ATOMIC_REPLACE", true),
			Classes:       classes,
		},
		Redis: RedisConfig{
			Addr:           getString(v, "REDIS_ADDR", ""),
			Password:       getString(v, "REDIS_PASSWORD", ""),
			DB:             getInt(v, "REDIS_DB", 0),
			IdempotencyTTL: getDuration(v, "REDIS_IDEMPOTENCY_TTL", 72*time.Hour),
		},
		Jobs: JobsConfig{
			Enabled:           getBool(v, "JOBS_ENABLED", true),
			RefreshSchedule:   getString(v, "JOBS_REFRESH_SCHEDULE", "0 */30 * * * *"),
			ReconcileSchedule: getString(v, "JOBS_RECONCILE_SCHEDULE", "0 15 3 * * *"),
			LockTTL:           getDuration(v, "JOBS_LOCK_TTL", 10*time.Minute),
		},
	}
	if cfg.DB.Driver == "postgres" && strings.TrimSpace(cfg.DB.PolicyRole) == "" {
		return nil, fmt.Errorf("DB_POLICY_ROLE: obligatorio con DB_DRIVER=postgres")
	}
	return cfg, nil
}

// ParseProductClasses interpreta "clase=tipo1,tipo2;otra=tipo3".
func ParseProductClasses(raw string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, list, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("clase mal formada %q", part)
		}
		var types []string
		for _, t := range strings.Split(list, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		if len(types) == 0 {
			return nil, fmt.Errorf("clase %q sin product_types", name)
		}
		out[name] = types
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no hay clases definidas")
	}
	return out, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		b, err := strconv.ParseBool(v.GetString(key))
		if err != nil {
			return def
		}
		return b
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil || d <= 0 {
			return def
		}
		return d
	}
	return def
}
