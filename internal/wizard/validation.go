package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/groundworklabs/groundwork/internal/database"
)

// ValidateEnvironmentName checks if an environment name is valid
func ValidateEnvironmentName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name cannot be empty")
	}

	for _, ch := range name {
		isValid := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-'
		if !isValid {
			return fmt.Errorf("environment name must contain only letters, numbers, underscores, and hyphens")
		}
	}

	return nil
}

// ValidatePort checks if a port number is valid
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	return nil
}

// ValidateRedisAddr checks a host:port redis address. Empty is allowed and
// means caching is disabled for the environment.
func ValidateRedisAddr(addr string) error {
	if addr == "" {
		return nil
	}

	host, port, found := strings.Cut(addr, ":")
	if !found || host == "" {
		return fmt.Errorf("redis address must be host:port")
	}
	return ValidatePort(port)
}

// TestConnection attempts to connect to the database
func TestConnection(ctx context.Context, connStr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := database.Open(ctx, connStr)
	if err != nil {
		return err
	}
	return db.Close()
}

// BuildConnectionString constructs the connection string for an environment
// based on its database type.
func BuildConnectionString(env EnvironmentInput) string {
	switch env.DatabaseType {
	case "postgres":
		return BuildPostgresConnectionString(env)
	case "sqlite":
		return BuildSQLiteConnectionString(env)
	case "libsql":
		return BuildLibSQLConnectionString(env)
	}
	return ""
}

// BuildPostgresConnectionString constructs a PostgreSQL connection string
func BuildPostgresConnectionString(env EnvironmentInput) string {
	// Auto-detect SSL mode based on host
	sslMode := env.SSLMode
	if sslMode == "" {
		if env.Host == "localhost" || env.Host == "127.0.0.1" {
			sslMode = "disable"
		} else {
			sslMode = "require"
		}
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		env.User, env.Password, env.Host, env.Port, env.Database, sslMode)
}

// BuildSQLiteConnectionString constructs a SQLite connection string
func BuildSQLiteConnectionString(env EnvironmentInput) string {
	filePath := env.FilePath
	if filePath == "" {
		filePath = "./data/groundwork.db"
	} else if !strings.HasPrefix(filePath, "./") && !strings.HasPrefix(filePath, "/") {
		filePath = "./" + filePath
	}

	return filePath
}

// BuildLibSQLConnectionString constructs a libSQL connection string
func BuildLibSQLConnectionString(env EnvironmentInput) string {
	if env.AuthToken != "" {
		return fmt.Sprintf("%s?authToken=%s", env.URL, env.AuthToken)
	}
	return env.URL
}
