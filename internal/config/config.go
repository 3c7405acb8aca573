package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	BlobBasePath string

	AuthSecret string

	CORSOrigins []string
}

// FromEnv loads configuration from the environment. A .env file in the
// working directory is applied first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:     envOr("HTTP_ADDR", ":8080"),
		PublicURL:    strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/"),
		DBDriver:     envOr("DB_DRIVER", "sqlite"),
		DBDSN:        envOr("DB_DSN", ""),
		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),
		AuthSecret:   envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		CORSOrigins:  csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
