package config

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvProduction = "production"

type Config struct {
	Port             string
	Environment      string
	RedisURL         string
	RedisPassword    string
	DatabaseURL      string
	IndexerURL       string
	IndexerAPIKey    string
	IndexerTimeout   time.Duration
	IndexerPageSize  int
	IndexerMaxPages  int
	DefaultContracts []string
	CronInterval     time.Duration
	CronEnabled      bool
	CronParallelism  int
	FrontendOrigin   string
	LogLevel         string
	LogFormat        string
}

// Production reports whether fallbacks should serve zeros instead of mock data.
func (c Config) Production() bool { return strings.EqualFold(c.Environment, EnvProduction) }

// NewViper returns a viper instance reading the environment, with a .env file
// in the working directory loaded first when present.
func NewViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("REDIS_URL", "redis://redis-master.redis.svc.cluster.local:6379/0")
	v.SetDefault("INDEXER_URL", "https://api.mainnet.hiro.so/extended")
	v.SetDefault("INDEXER_TIMEOUT_SECONDS", 30)
	v.SetDefault("INDEXER_PAGE_SIZE", 50)
	v.SetDefault("INDEXER_MAX_PAGES", 20)
	v.SetDefault("CRON_INTERVAL", "5m")
	v.SetDefault("CRON_ENABLED", true)
	v.SetDefault("CRON_PARALLELISM", 4)
	v.SetDefault("FRONTEND_ORIGIN", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("INFISICAL_SITE_URL", "http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	v.SetDefault("INFISICAL_ENV", "prod")
	return v
}

func Load(v *viper.Viper) Config {
	cfg := Config{
		Port:             v.GetString("PORT"),
		Environment:      strings.ToLower(v.GetString("ENVIRONMENT")),
		RedisURL:         v.GetString("REDIS_URL"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		IndexerURL:       strings.TrimRight(v.GetString("INDEXER_URL"), "/"),
		IndexerAPIKey:    v.GetString("INDEXER_API_KEY"),
		IndexerTimeout:   time.Duration(v.GetInt("INDEXER_TIMEOUT_SECONDS")) * time.Second,
		IndexerPageSize:  v.GetInt("INDEXER_PAGE_SIZE"),
		IndexerMaxPages:  v.GetInt("INDEXER_MAX_PAGES"),
		DefaultContracts: splitList(v.GetString("DEFAULT_CONTRACTS")),
		CronInterval:     v.GetDuration("CRON_INTERVAL"),
		CronEnabled:      v.GetBool("CRON_ENABLED"),
		CronParallelism:  v.GetInt("CRON_PARALLELISM"),
		FrontendOrigin:   v.GetString("FRONTEND_ORIGIN"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
	}
	if cfg.IndexerTimeout <= 0 {
		cfg.IndexerTimeout = 30 * time.Second
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := v.GetString("INFISICAL_CLIENT_ID")
	clientSecret := v.GetString("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(v, &cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(v *viper.Viper, cfg *Config, clientID, clientSecret string) {
	projectID := v.GetString("INFISICAL_PROJECT_ID")
	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          v.GetString("INFISICAL_SITE_URL"),
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"REDIS_PASSWORD":  &cfg.RedisPassword,
		"INDEXER_API_KEY": &cfg.IndexerAPIKey,
		"DATABASE_URL":    &cfg.DatabaseURL,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: v.GetString("INFISICAL_ENV"),
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
