package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/paywallio/paywalld/internal/blockchain"
	"github.com/paywallio/paywalld/internal/config"
	"github.com/paywallio/paywalld/internal/http_api"
	"github.com/paywallio/paywalld/internal/metrics"
	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/internal/paywall"
	"github.com/paywallio/paywalld/internal/repository"
	"github.com/paywallio/paywalld/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "paywalld",
		Usage: "paywalld verifies on-chain payments and unlocks paywalled content",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "port", Usage: "HTTP API port"},
			&cli.StringFlag{Name: "base-domain", Aliases: []string{"b"}, Usage: "Public origin used to build paywall links"},
			&cli.DurationFlag{Name: "oracle-timeout", Usage: "Timeout of a single chain lookup"},
			&cli.BoolFlag{Name: "memory", Aliases: []string{"m"}, Usage: "Keep paywalls and purchases in memory instead of Postgres"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("port") {
		cfg.APIPort = c.Int("port")
	}
	if c.IsSet("base-domain") {
		cfg.BaseDomain = c.String("base-domain")
	}
	if c.IsSet("oracle-timeout") {
		cfg.OracleTimeout = c.Duration("oracle-timeout")
	}
	if c.IsSet("memory") {
		cfg.MemoryStore = c.Bool("memory")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	// Initialize storage
	var repo models.Repository
	if cfg.MemoryStore {
		log.Warn("Using in-memory storage, purchases are lost on restart")
		repo = repository.NewMemoryDB()
	} else {
		db, err := repository.NewPostgresDB(cfg.PostgresDSN(), log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
		repo = db
	}
	defer repo.Close()

	// Initialize chain oracles
	oracles := blockchain.NewOracles(cfg, log)
	defer oracles.Close()

	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)
	service := paywall.NewService(repo, oracles, recorder, log, cfg)

	apiServer := http_api.NewHTTPServer(service, recorder, prometheus.DefaultGatherer, cfg.APIPort, log)
	go apiServer.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", "signal", sig.String())

	return apiServer.Shutdown()
}
