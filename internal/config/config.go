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
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Dev struct {
		Mode bool `yaml:"mode"`
	} `yaml:"dev"`
	Offline struct {
		Mode bool `yaml:"mode"`
	} `yaml:"offline"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Cache struct {
		Backend         string        `yaml:"backend"`
		BaseTTL         time.Duration `yaml:"base_ttl"`
		MinQualityRatio float64       `yaml:"min_quality_ratio"`
	} `yaml:"cache"`
	Packs struct {
		Dir string `yaml:"dir"`
	} `yaml:"packs"`
	Qdrant struct {
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
		EmbedDim   int    `yaml:"embed_dim"`
	} `yaml:"qdrant"`
	Embedding struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		Dim      int    `yaml:"dim"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"embedding"`
	Queue struct {
		Name        string `yaml:"name"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"queue"`
	MCP struct {
		ProtocolVersion string   `yaml:"protocol_version"`
		AllowOrigins    []string `yaml:"allow_origins"`
	} `yaml:"mcp"`
	Security struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"security"`
	RateLimit struct {
		PerMinute int `yaml:"per_minute"`
		Burst     int `yaml:"burst"`
	} `yaml:"rate_limit"`
	Telemetry struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"telemetry"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8090"
	cfg.Dev.Mode = true
	cfg.Cache.Backend = "auto"
	cfg.Cache.BaseTTL = time.Hour
	cfg.Cache.MinQualityRatio = 0.5
	cfg.Packs.Dir = "configs/packs"
	cfg.Qdrant.Collection = "prompts_v1536"
	cfg.Qdrant.EmbedDim = 1536
	cfg.Embedding.Provider = "noop"
	cfg.Embedding.Dim = 1536
	cfg.Queue.Name = "pf:embed"
	cfg.Queue.Concurrency = 2
	cfg.MCP.ProtocolVersion = "2025-11-25"
	cfg.RateLimit.PerMinute = 120
	cfg.RateLimit.Burst = 20
	cfg.Telemetry.Enabled = true
	cfg.Log.Level = "info"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	overlayEnv(&cfg)

	switch cfg.Cache.Backend {
	case "auto", "memory", "redis":
	default:
		return cfg, fmt.Errorf("unknown cache.backend %q (want auto, memory or redis)", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && cfg.Redis.URL == "" {
		return cfg, fmt.Errorf("cache.backend=redis requires redis.url (or PF_REDIS_URL)")
	}
	if cfg.Cache.MinQualityRatio <= 0 || cfg.Cache.MinQualityRatio > 1 {
		return cfg, fmt.Errorf("cache.min_quality_ratio %.2f out of range (0,1]", cfg.Cache.MinQualityRatio)
	}

	return cfg, nil
}

// overlayEnv applies PF_* variables on top of whatever the file set.
// Unset or unparseable variables leave the current value alone.
func overlayEnv(cfg *Config) {
	envString("PF_HTTP_ADDR", &cfg.HTTP.Addr)
	envBool("PF_DEV_MODE", &cfg.Dev.Mode)
	envBool("PF_OFFLINE_MODE", &cfg.Offline.Mode)
	envString("PF_DB_DSN", &cfg.Database.DSN)
	envString("PF_REDIS_URL", &cfg.Redis.URL)
	envString("PF_CACHE_BACKEND", &cfg.Cache.Backend)
	envDuration("PF_CACHE_BASE_TTL", &cfg.Cache.BaseTTL)
	envFloat("PF_CACHE_MIN_QUALITY_RATIO", &cfg.Cache.MinQualityRatio)
	envString("PF_PACKS_DIR", &cfg.Packs.Dir)
	envString("PF_QDRANT_URL", &cfg.Qdrant.URL)
	envString("PF_QDRANT_COLLECTION", &cfg.Qdrant.Collection)

	// One knob sizes both the vectors we produce and the collection that holds them.
	envPositive("PF_EMBED_DIM", &cfg.Embedding.Dim)
	envPositive("PF_EMBED_DIM", &cfg.Qdrant.EmbedDim)

	envString("PF_EMBED_PROVIDER", &cfg.Embedding.Provider)
	envString("PF_EMBED_MODEL", &cfg.Embedding.Model)
	envString("PF_OPENAI_API_KEY", &cfg.Embedding.APIKey)
	envString("PF_OLLAMA_URL", &cfg.Embedding.BaseURL)
	envString("PF_QUEUE_NAME", &cfg.Queue.Name)
	envPositive("PF_QUEUE_CONCURRENCY", &cfg.Queue.Concurrency)
	envString("PF_MCP_PROTOCOL_VERSION", &cfg.MCP.ProtocolVersion)
	envList("PF_MCP_ALLOW_ORIGINS", &cfg.MCP.AllowOrigins)
	envString("PF_API_KEY", &cfg.Security.APIKey)
	envInt("PF_RATE_LIMIT_PER_MINUTE", &cfg.RateLimit.PerMinute)
	envInt("PF_RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
	envBool("PF_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	envString("PF_LOG_LEVEL", &cfg.Log.Level)
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envBool(name string, dst *bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		*dst = true
	case "0", "false", "no", "n", "off":
		*dst = false
	}
}

// Atoi rejects the empty string, so unset variables fall through here too.
func envInt(name string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
		*dst = n
	}
}

// envPositive is envInt for values where zero and below make no sense,
// such as vector dimensions and worker counts.
func envPositive(name string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil && n > 0 {
		*dst = n
	}
}

func envFloat(name string, dst *float64) {
	if f, err := strconv.ParseFloat(os.Getenv(name), 64); err == nil {
		*dst = f
	}
}

func envDuration(name string, dst *time.Duration) {
	if d, err := time.ParseDuration(os.Getenv(name)); err == nil {
		*dst = d
	}
}

func envList(name string, dst *[]string) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	var vals []string
	for _, part := range strings.Split(raw, ",") {
		if val := strings.TrimSpace(part); val != "" {
			vals = append(vals, val)
		}
	}
	if len(vals) > 0 {
		*dst = vals
	}
}
