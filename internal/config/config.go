package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the cinematch service.
type Config struct {
	Port      string
	LogLevel  string
	TMDB      TMDBConfig
	Redis     RedisConfig
	DB        DBConfig
	History   HistoryConfig
	Recommend RecommendConfig
	Stats     StatsConfig
	RateLimit RateLimitConfig
}

// TMDBConfig holds TMDB API configuration.
type TMDBConfig struct {
	APIKey            string
	BaseURL           string
	Region            string
	MinVoteCount      int
	RequestsPerSecond float64
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DBConfig holds PostgreSQL configuration, used when the history store
// runs on the postgres backend.
type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

// HistoryConfig selects and configures the history store backend.
type HistoryConfig struct {
	// Backend is "sheets" or "postgres".
	Backend         string
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
}

// RecommendConfig tunes the recommendation engine surface.
type RecommendConfig struct {
	// MaxRows is how many genre rows the discover view surfaces.
	MaxRows int
	// DefaultGenres backfills the genre rows of users with little or no
	// history. Names must match the catalog taxonomy.
	DefaultGenres []string
	// RewatchThreshold is the minimum rating for a title to qualify as
	// a comfort rewatch.
	RewatchThreshold int
	// RewatchCount is how many rewatch picks to surface.
	RewatchCount int
}

// StatsConfig tunes the stats aggregator.
type StatsConfig struct {
	// HistogramBinWidth is the fixed bin width of the rating histogram.
	HistogramBinWidth int
}

// RateLimitConfig tunes the Redis-backed API rate limiter.
type RateLimitConfig struct {
	Max           int
	WindowSeconds int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	minVotes, _ := strconv.Atoi(getEnv("TMDB_MIN_VOTE_COUNT", "200"))
	rps, _ := strconv.ParseFloat(getEnv("TMDB_REQUESTS_PER_SECOND", "20"), 64)
	maxRows, _ := strconv.Atoi(getEnv("RECOMMEND_MAX_ROWS", "5"))
	rewatchThreshold, _ := strconv.Atoi(getEnv("RECOMMEND_REWATCH_THRESHOLD", "80"))
	rewatchCount, _ := strconv.Atoi(getEnv("RECOMMEND_REWATCH_COUNT", "4"))
	binWidth, _ := strconv.Atoi(getEnv("STATS_HISTOGRAM_BIN_WIDTH", "10"))
	rateLimitMax, _ := strconv.Atoi(getEnv("RATE_LIMIT_MAX", "120"))
	rateLimitWindow, _ := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"))

	cfg := &Config{
		Port:     getEnv("SERVER_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TMDB: TMDBConfig{
			APIKey:            getEnv("TMDB_API_KEY", ""),
			BaseURL:           getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			Region:            getEnv("TMDB_WATCH_REGION", "US"),
			MinVoteCount:      minVotes,
			RequestsPerSecond: rps,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "cinematch"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		History: HistoryConfig{
			Backend:         getEnv("HISTORY_BACKEND", "sheets"),
			SpreadsheetID:   getEnv("SHEET_ID", ""),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
			CredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		},
		Recommend: RecommendConfig{
			MaxRows:          maxRows,
			DefaultGenres:    splitCSV(getEnv("RECOMMEND_DEFAULT_GENRES", "Action,Comedy,Drama,Science Fiction,Horror,Romance")),
			RewatchThreshold: rewatchThreshold,
			RewatchCount:     rewatchCount,
		},
		Stats: StatsConfig{
			HistogramBinWidth: binWidth,
		},
		RateLimit: RateLimitConfig{
			Max:           rateLimitMax,
			WindowSeconds: rateLimitWindow,
		},
	}

	if cfg.TMDB.APIKey == "" {
		return nil, fmt.Errorf("TMDB_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
