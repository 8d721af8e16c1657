/*
main.go - Application entry point

PURPOSE:
  Starts the attendance server and hosts the operational commands.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve     Run the HTTP server (default)
  sync      Backfill a month for some or all users
  token     Issue a bearer token for a user
  migrate   Create indexes and decode legacy leave notes
  seed      Load demo scenarios

STARTUP SEQUENCE:
  1. Load .env
  2. Parse flags and environment
  3. Build logger
  4. Open the configured store
  5. Run the selected command

ENVIRONMENT:
  PORT, STORE_DRIVER, MONGOSTRING, MONGO_DATABASE, SQLITE_PATH,
  PASETO_SECRET, ADMIN_API_KEY, ALLOWED_ORIGINS, LOG_LEVEL, LOG_FILE.
  See config/config.go.

EXAMPLES:
  # Serve from a local SQLite file
  ./server serve --sqlite-path=./data/attendance.db

  # Backfill January for everyone against MongoDB
  STORE_DRIVER=mongo MONGOSTRING=mongodb://localhost:27017 ./server sync --year=2025 --month=1

SEE ALSO:
  - commands.go: Command implementations
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
	"github.com/warp/attendance/config"
	"github.com/warp/attendance/logger"
)

var CLI struct {
	Config config.Config `embed:""`

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP server." default:"1"`
	Sync    SyncCmd    `cmd:"" help:"Backfill past unmarked weekdays of a month."`
	Token   TokenCmd   `cmd:"" help:"Issue a bearer token for a user."`
	Migrate MigrateCmd `cmd:"" help:"Create indexes and decode legacy leave notes."`
	Seed    SeedCmd    `cmd:"" help:"Load demo scenarios."`
}

// App is passed to every command.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Store   attendance.Store
	Service *attendance.Service
	Clock   calendar.Clock
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := kong.Parse(&CLI,
		kong.Name("attendance"),
		kong.Description("Attendance and leave accounting server"),
		kong.UsageOnError(),
	)

	cfg := &CLI.Config
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	l, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(context.Background(), cfg, l)
	if err != nil {
		l.Fatal("failed to open store", "driver", cfg.StoreDriver, "err", err)
	}
	defer closeStore()

	app := &App{
		Config:  cfg,
		Logger:  l,
		Store:   store,
		Service: attendance.NewService(store, l),
		Clock:   calendar.SystemClock{},
	}

	if err := ctx.Run(app); err != nil {
		l.Error("command failed", "command", ctx.Command(), "err", err)
		closeStore()
		os.Exit(1)
	}
}
