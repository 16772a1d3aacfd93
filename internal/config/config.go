package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	CORSOrigins string
	TablePrefix string

	// Connection pool sizing; 0 keeps the pgxpool default
	DBMaxConns int32
	DBMinConns int32

	// Keycloak
	KeycloakURL           string
	KeycloakRealm         string
	KeycloakClientID      string // UI client used for the login password grant
	KeycloakAdminRealm    string
	KeycloakAdminUsername string
	KeycloakAdminPassword string
	KeycloakJWKSURL       string // Constructed from KeycloakURL + realm certs endpoint
	KeycloakIssuer        string

	// OpenKM
	OpenKMURL      string
	OpenKMUsername string
	OpenKMPassword string
	OpenKMBasePath string

	// UpstreamTimeout bounds every call to Keycloak and OpenKM.
	UpstreamTimeout time.Duration

	// Logging
	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	keycloakURL := getEnv("KEYCLOAK_URL", "http://localhost:8180")
	realm := getEnv("KEYCLOAK_REALM", "datum")
	issuer := keycloakURL + "/realms/" + realm

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),
		TablePrefix: getTablePrefix(env),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 20)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		KeycloakURL:           keycloakURL,
		KeycloakRealm:         realm,
		KeycloakClientID:      getEnv("KEYCLOAK_CLIENT_ID", "datum-react-app"),
		KeycloakAdminRealm:    getEnv("KEYCLOAK_ADMIN_REALM", realm),
		KeycloakAdminUsername: getEnv("KEYCLOAK_ADMIN_USERNAME", ""),
		KeycloakAdminPassword: getEnv("KEYCLOAK_ADMIN_PASSWORD", ""),
		KeycloakJWKSURL:       issuer + "/protocol/openid-connect/certs",
		KeycloakIssuer:        issuer,

		OpenKMURL:      getEnv("OPENKM_URL", "http://localhost:8081/OpenKM"),
		OpenKMUsername: getEnv("OPENKM_USERNAME", "okmAdmin"),
		OpenKMPassword: getEnv("OPENKM_PASSWORD", ""),
		OpenKMBasePath: getEnv("OPENKM_BASE_PATH", "/okm:root/datum/employee/purchase"),

		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 30*time.Second),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 10),
	}
}

// IsProduction reports whether destructive tooling must refuse to run.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix, ok := os.LookupEnv("TABLE_PREFIX"); ok {
		return prefix
	}

	switch env {
	case "prod":
		return ""
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
