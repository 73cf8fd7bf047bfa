package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	VectorDatabaseURL string
	SslCertPath       string
	AgentID           int

	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	GraphBaseURL string

	CursorStore  string
	CursorPath   string
	CursorKey    string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	EmbedProvider  string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	AIAPIKey       string
	EmbedModel     string
	EmbedDim       int
	TokenizerModel string

	ChunkMaxWords    int
	ChunkOverlap     int
	ChunkMaxTokens   int
	EmbedConcurrency int
	CallTimeout      time.Duration

	LogLevel    string
	Port        string
	JWTSecret   string
	CorsOrigins []string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {
	cfg, err := FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// FromEnv reads .env (if present) and the process environment.
func FromEnv() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AgentID:      getEnvInt("AGENT_ID", 1),
		TenantID:     getEnv("TENANT_ID", ""),
		ClientID:     getEnv("CLIENT_ID", ""),
		ClientSecret: getEnv("CLIENT_SECRET", ""),
		DriveID:      getEnv("DRIVE_ID", ""),
		GraphBaseURL: strings.TrimRight(getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"), "/"),

		CursorStore:  strings.ToLower(getEnv("CURSOR_STORE", "file")),
		CursorPath:   getEnv("CURSOR_PATH", "./deltaLink.txt"),
		CursorKey:    getEnv("CURSOR_KEY", "drivesync/deltaLink.txt"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		EmbedProvider: strings.ToLower(getEnv("EMBED_PROVIDER", "openai")),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),

		ChunkMaxWords:    getEnvInt("CHUNK_MAX_WORDS", 400),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 50),
		ChunkMaxTokens:   getEnvInt("CHUNK_MAX_TOKENS", 8192),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 1),
		CallTimeout:      getEnvDuration("CALL_TIMEOUT", 60*time.Second),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CorsOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
	}
	cfg.VectorDatabaseURL = getEnv("VECTOR_DATABASE_URL", cfg.DatabaseURL)
	defModel, defDim := embedDefaults(cfg.EmbedProvider)
	cfg.EmbedModel = getEnv("EMBED_MODEL", defModel)
	cfg.EmbedDim = getEnvInt("EMBED_DIM", defDim)
	cfg.TokenizerModel = getEnv("TOKENIZER_MODEL", cfg.EmbedModel)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// maxIndexedDim is the largest vector pgvector's hnsw index accepts.
const maxIndexedDim = 2000

func embedDefaults(provider string) (model string, dim int) {
	if provider == "gemini" {
		return "text-embedding-004", 768
	}
	return "text-embedding-3-small", 1536
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.ChunkMaxWords <= 0 {
		return fmt.Errorf("CHUNK_MAX_WORDS must be positive, got %d", c.ChunkMaxWords)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxWords {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.ChunkMaxWords, c.ChunkOverlap)
	}
	if c.ChunkMaxTokens <= 0 {
		return fmt.Errorf("CHUNK_MAX_TOKENS must be positive, got %d", c.ChunkMaxTokens)
	}
	if c.EmbedConcurrency < 1 {
		c.EmbedConcurrency = 1
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive, got %s", c.CallTimeout)
	}
	switch c.EmbedProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("EMBED_PROVIDER must be openai or gemini, got %q", c.EmbedProvider)
	}
	if c.EmbedProvider == "gemini" && isOpenAIModel(c.EmbedModel) {
		return fmt.Errorf("EMBED_MODEL %q is an OpenAI model, EMBED_PROVIDER is gemini", c.EmbedModel)
	}
	if c.EmbedDim <= 0 || c.EmbedDim > maxIndexedDim {
		return fmt.Errorf("EMBED_DIM must be in [1, %d], got %d", maxIndexedDim, c.EmbedDim)
	}
	switch c.CursorStore {
	case "file", "s3":
	default:
		return fmt.Errorf("CURSOR_STORE must be file or s3, got %q", c.CursorStore)
	}
	return nil
}

func isOpenAIModel(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3") || strings.HasPrefix(model, "text-embedding-ada")
}

// ValidateSync checks the settings only the sync binary needs.
func (c *Config) ValidateSync() error {
	var missing []string
	for key, v := range map[string]string{
		"TENANT_ID":     c.TenantID,
		"CLIENT_ID":     c.ClientID,
		"CLIENT_SECRET": c.ClientSecret,
		"DRIVE_ID":      c.DriveID,
	} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if c.EmbedProvider == "openai" && c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.EmbedProvider == "gemini" && c.AIAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.CursorStore == "s3" && c.BucketName == "" {
		missing = append(missing, "BUCKET_NAME")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
