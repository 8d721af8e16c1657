package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance/api"
	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/auth"
	"github.com/warp/attendance/calendar"
	"github.com/warp/attendance/scenario"
	"github.com/warp/attendance/store/mongo"
)

// =============================================================================
// SERVE
// =============================================================================

type ServeCmd struct {
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests." default:"30s"`
}

func (c *ServeCmd) Run(app *App) error {
	if app.Config.PasetoSecret == "" {
		return errors.New("PASETO_SECRET is required to serve")
	}
	tokens, err := auth.NewPaseto(app.Config.PasetoSecret, auth.DefaultTTL)
	if err != nil {
		return err
	}

	handler := api.NewHandler(app.Service, auth.StoreAdmin{Users: app.Store}, app.Clock, app.Logger)
	router := api.NewRouter(handler, api.RouterConfig{
		Authenticator:  tokens,
		AdminAPIKey:    app.Config.AdminAPIKey,
		AllowedOrigins: app.Config.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         app.Config.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		app.Logger.Info("server starting", "addr", server.Addr, "store", app.Config.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	app.Logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	app.Logger.Info("server stopped")
	return nil
}

// =============================================================================
// SYNC
// =============================================================================

type SyncCmd struct {
	Year  int      `help:"Year to backfill (default: current)."`
	Month int      `help:"Month to backfill, 1-12 (default: current)."`
	Users []string `arg:"" optional:"" help:"User ids; all users when omitted."`
}

func (c *SyncCmd) Run(app *App) error {
	ctx := context.Background()
	today := calendar.TodayFrom(app.Clock)
	year, month := c.Year, time.Month(c.Month)
	if year == 0 {
		year = today.Year
	}
	if month == 0 {
		month = today.Month
	}

	var (
		res *attendance.BatchSyncResult
		err error
	)
	if len(c.Users) == 0 {
		res, err = app.Service.SyncAll(ctx, year, month, today)
	} else {
		res, err = app.Service.SyncUsers(ctx, c.Users, year, month, today)
	}
	if err != nil {
		return err
	}

	for _, r := range res.Results {
		if r.Error != "" {
			fmt.Printf("  %-26s error: %s\n", r.UserID, r.Error)
			continue
		}
		fmt.Printf("  %-26s synced %2d, skipped %2d  %s\n", r.UserID, r.Synced, r.Skipped, r.UserEmail)
	}
	fmt.Printf("\n%d user(s): %d synced, %d skipped, %d failed\n", res.TotalUsers, res.TotalSynced, res.TotalSkipped, res.Failed)
	return nil
}

// =============================================================================
// TOKEN
// =============================================================================

type TokenCmd struct {
	Email string        `arg:"" help:"Email of the user."`
	TTL   time.Duration `help:"Token lifetime." default:"24h"`
}

func (c *TokenCmd) Run(app *App) error {
	if app.Config.PasetoSecret == "" {
		return errors.New("PASETO_SECRET is required to issue tokens")
	}
	tokens, err := auth.NewPaseto(app.Config.PasetoSecret, c.TTL)
	if err != nil {
		return err
	}
	u, err := app.Store.FindUserByEmail(context.Background(), c.Email)
	if err != nil {
		return err
	}
	tok, err := tokens.Issue(auth.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

// =============================================================================
// MIGRATE
// =============================================================================

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *App) error {
	ctx := context.Background()
	if s, ok := app.Store.(*mongo.Store); ok {
		backfilled, err := s.EnsureIndexes(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Backfilled day key on %d record(s); indexes ensured.\n", backfilled)
	}

	n, err := app.Service.MigrateLegacy(ctx)
	if err != nil {
		return fmt.Errorf("migration failed after %d record(s): %w", n, err)
	}
	if n == 0 {
		fmt.Println("No legacy leave records to migrate.")
	} else {
		fmt.Printf("Migrated %d legacy leave record(s).\n", n)
	}
	return nil
}

// =============================================================================
// SEED
// =============================================================================

type SeedCmd struct {
	List      bool     `help:"List scenarios and exit."`
	Reset     bool     `help:"Delete all records and users before loading."`
	Scenarios []string `arg:"" optional:"" help:"Scenario ids; all when omitted."`
}

func (c *SeedCmd) Run(app *App) error {
	if c.List {
		for _, s := range scenario.All {
			fmt.Printf("  %-16s %s\n", s.ID, s.Description)
		}
		return nil
	}

	ids := c.Scenarios
	if len(ids) == 0 {
		for _, s := range scenario.All {
			ids = append(ids, s.ID)
		}
	}
	for _, id := range ids {
		if _, err := scenario.Lookup(id); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if c.Reset {
		if err := scenario.Reset(ctx, app.Store); err != nil {
			return err
		}
		app.Logger.Warn("store reset", "driver", app.Config.StoreDriver)
	}
	today := calendar.TodayFrom(app.Clock)
	for _, id := range ids {
		if err := scenario.Load(ctx, app.Service, id, today); err != nil {
			return err
		}
		fmt.Printf("Loaded %s\n", id)
	}
	return nil
}
