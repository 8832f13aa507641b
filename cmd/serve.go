package cmd

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/groundworklabs/groundwork/internal/cache"
	"github.com/groundworklabs/groundwork/internal/config"
	"github.com/groundworklabs/groundwork/internal/database"
	"github.com/groundworklabs/groundwork/internal/logging"
	"github.com/groundworklabs/groundwork/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server with the full middleware chain: request logging,
security headers, CORS and per-client rate limiting. The server connects to
the environment's database and Redis cache at startup and shuts down
gracefully on SIGINT/SIGTERM.`,
	Run: runServe,
}

var serveEnv string

// dbPinger adapts *sql.DB to the router's readiness check, which wants a
// context-aware ping.
type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveEnv, "env", "", "Named environment from "+config.ConfigFileName+" (defaults to config default)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	env, err := config.ResolveEnvironment(cfg, serveEnv)
	if err != nil {
		log.Fatalf("Failed to resolve environment: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("connecting", "database", database.Redact(env.DatabaseURL))
	db, err := database.Open(ctx, env.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	redis, err := cache.New(ctx, cache.Config{
		Addr:   env.RedisAddr,
		Prefix: env.RedisPrefix,
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis at %s: %v", env.RedisAddr, err)
	}
	defer func() { _ = redis.Close() }()

	dialect := database.Dialect(database.DetectDriver(env.DatabaseURL))
	users := server.NewUserStore(db, dialect, redis)

	handler := server.NewRouter(server.RouterConfig{
		Users: users,
		DB:    dbPinger{db: db},
		Cache: redis,
		Middleware: []server.Middleware{
			server.RequestLogging(logger),
			server.SecurityHeaders(),
			server.CORS(cfg.Server.AllowedOrigins),
			server.RateLimit(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst),
		},
	})

	srv := server.New(cfg.Server, handler, logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
