package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig is the env-backed configuration. Load order: process env wins
// over .env values.
type AppConfig struct {
	ServerAddr      string
	DSN             string
	SigningKey      string
	SigningMethod   string
	ContextKey      string
	TokenExpiration int
	TokenLookup     string
	AuthScheme      string
	Issuer          string
	Audience        []string
	ActivationURL   string
	SMTPAddr        string
	SMTPFrom        string
	TemplatesDir    string
	UploadsDir      string
	Debug           bool
}

func LoadConfig() *AppConfig {
	// missing .env is fine, env vars may come from the process
	_ = godotenv.Load()

	return &AppConfig{
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		DSN:             getEnv("DATABASE_DSN", "file:booknetwork.db?cache=shared&mode=rwc"),
		SigningKey:      getEnv("JWT_SIGNING_KEY", "change-me-in-production"),
		SigningMethod:   getEnv("JWT_SIGNING_METHOD", "HS256"),
		ContextKey:      getEnv("AUTH_CONTEXT_KEY", "user"),
		TokenExpiration: getEnvInt("JWT_EXPIRATION_HOURS", 24),
		TokenLookup:     getEnv("AUTH_TOKEN_LOOKUP", "header:Authorization"),
		AuthScheme:      getEnv("AUTH_SCHEME", "Bearer"),
		Issuer:          getEnv("JWT_ISSUER", "book-network"),
		Audience:        getEnvList("JWT_AUDIENCE", "book-network"),
		ActivationURL:   getEnv("ACTIVATION_URL", "http://localhost:8080/auth/activate-account"),
		SMTPAddr:        getEnv("SMTP_ADDR", ""),
		SMTPFrom:        getEnv("SMTP_FROM", "no-reply@book-network.local"),
		TemplatesDir:    getEnv("MAIL_TEMPLATES_DIR", "./templates"),
		UploadsDir:      getEnv("UPLOADS_DIR", "./uploads"),
		Debug:           getEnvBool("DEBUG", false),
	}
}

func (c *AppConfig) GetSigningKey() string    { return c.SigningKey }
func (c *AppConfig) GetSigningMethod() string { return c.SigningMethod }
func (c *AppConfig) GetContextKey() string    { return c.ContextKey }
func (c *AppConfig) GetTokenExpiration() int  { return c.TokenExpiration }
func (c *AppConfig) GetTokenLookup() string   { return c.TokenLookup }
func (c *AppConfig) GetAuthScheme() string    { return c.AuthScheme }
func (c *AppConfig) GetIssuer() string        { return c.Issuer }
func (c *AppConfig) GetAudience() []string    { return c.Audience }
func (c *AppConfig) GetActivationURL() string { return c.ActivationURL }

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key, def string) []string {
	raw := getEnv(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
