package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/config"
	"github.com/warp/attendance/store/memory"
	"github.com/warp/attendance/store/mongo"
	"github.com/warp/attendance/store/sqlite"
)

// openStore opens the configured store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, l *log.Logger) (attendance.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		backfilled, err := s.EnsureIndexes(ctx)
		if err != nil {
			l.Warn("attendance indexes not ensured; run migrate", "err", err)
		} else if backfilled > 0 {
			l.Info("backfilled day keys", "count", backfilled)
		}
		l.Info("connected to MongoDB", "database", s.Database())
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				l.Warn("failed to disconnect from MongoDB", "err", err)
			}
		}, nil

	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		l.Info("opened SQLite store", "path", cfg.SQLitePath)
		return s, func() {
			if err := s.Close(); err != nil {
				l.Warn("failed to close SQLite store", "err", err)
			}
		}, nil

	case config.DriverMemory:
		l.Warn("using in-memory store; data is lost on exit")
		return memory.NewTxMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
