package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
)

// Config is read from the environment (and .env when present).
type Config struct {
	Addr    string `default:":8000"`
	DevMode bool

	// chat front end
	SearchEndpoint   string        `default:"http://localhost:8000/find_similar_jewelry"`
	SearchTimeout    time.Duration `default:"90s"`
	PlaceholderImage string        `default:"/static/placeholder.svg"`
	LenientURLs      bool          `default:"true"`
	ImageHosts       []string
	SessionTTL       time.Duration `default:"2h"`

	// similarity backend
	Backend     bool    `default:"true"`
	LLMProvider string  `default:"groq"`
	GroqAPIKey  string
	GroqBaseURL string  `default:"https://api.groq.com/openai/v1"`
	VisionModel string  `default:"llama-3.2-90b-vision-preview"`
	TextModel   string  `default:"llama-3.3-70b-versatile"`
	OllamaURL   string  `default:"http://localhost:11434"`
	PageLimit   int     `default:"50"`
	ResultLimit int     `default:"4"`
	RateRPS     float64 `default:"1"`
	RateBurst   int     `default:"5"`

	// TRUSTED_PROXIES: peers allowed to set X-Forwarded-For, besides loopback
	Proxies proxyList

	// catalog
	MySQLDSN      string
	TiDBCA        string
	CloudinaryURL string
	HubURL        string
	HubApp        string
	HubKey        string
	HubSecret     string
	AdminToken    string

	KafkaBrokers string
	KafkaTopic   string `default:"jewelry_searches"`
	LogFile      string
}

// loadConfig applies defaults, then .env, then the process environment.
func loadConfig() (Config, error) {
	_ = godotenv.Load(".env")
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return cfg, fmt.Errorf("config defaults: %w", err)
	}
	cfg.ImageHosts = defaultImageHosts

	var errs []string
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, key+": "+err.Error())
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, key+": "+err.Error())
				return
			}
			*dst = d
		}
	}

	str("ADDR", &cfg.Addr)
	boolean("DEV_MODE", &cfg.DevMode)
	str("SEARCH_ENDPOINT", &cfg.SearchEndpoint)
	duration("SEARCH_TIMEOUT", &cfg.SearchTimeout)
	str("PLACEHOLDER_IMAGE", &cfg.PlaceholderImage)
	boolean("LENIENT_IMAGE_URLS", &cfg.LenientURLs)
	if v := os.Getenv("IMAGE_HOSTS"); v != "" {
		cfg.ImageHosts = splitList(v)
	}
	duration("SESSION_TTL", &cfg.SessionTTL)

	boolean("BACKEND", &cfg.Backend)
	str("LLM_PROVIDER", &cfg.LLMProvider)
	str("GROQ_API_KEY", &cfg.GroqAPIKey)
	str("GROQ_BASE_URL", &cfg.GroqBaseURL)
	str("VISION_MODEL", &cfg.VisionModel)
	str("TEXT_MODEL", &cfg.TextModel)
	str("OLLAMA_URL", &cfg.OllamaURL)
	integer("PAGE_LIMIT", &cfg.PageLimit)
	integer("RESULT_LIMIT", &cfg.ResultLimit)
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, "RATE_RPS: "+err.Error())
		} else {
			cfg.RateRPS = f
		}
	}
	integer("RATE_BURST", &cfg.RateBurst)
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		proxies, err := parseProxies(v)
		if err != nil {
			errs = append(errs, "TRUSTED_PROXIES: "+err.Error())
		} else {
			cfg.Proxies = proxies
		}
	}

	str("MYSQL_DSN", &cfg.MySQLDSN)
	str("TIDB_CA", &cfg.TiDBCA)
	str("CLOUDINARY_URL", &cfg.CloudinaryURL)
	str("API_URL", &cfg.HubURL)
	str("API_APP", &cfg.HubApp)
	str("API_KEY", &cfg.HubKey)
	str("API_SECRET", &cfg.HubSecret)
	str("ADMIN_TOKEN", &cfg.AdminToken)
	str("KAFKA_BROKERS", &cfg.KafkaBrokers)
	str("KAFKA_TOPIC", &cfg.KafkaTopic)
	str("LOG_FILE", &cfg.LogFile)

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	if cfg.ResultLimit <= 0 || cfg.PageLimit <= 0 {
		return fmt.Errorf("PAGE_LIMIT and RESULT_LIMIT must be positive")
	}
	if cfg.DevMode {
		return nil
	}
	// without DEV_MODE the catalog needs MySQL or the hub API
	if cfg.Backend && cfg.MySQLDSN == "" && cfg.HubURL == "" {
		return fmt.Errorf("env MYSQL_DSN or API_URL must be set (or set DEV_MODE=true to run without external services)")
	}
	if cfg.MySQLDSN != "" && cfg.CloudinaryURL == "" {
		log.Println("warning: CLOUDINARY_URL not set, admin uploads are disabled")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
