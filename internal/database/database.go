package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnavailable = errors.New("database unavailable")

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// NewDatabase opens a connection for driver, checks it and brings the schema
// up to date.
func NewDatabase(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("%w: error opening database: %w", ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting underlying database: %w", err)
	}

	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxIdleTime(time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: unable to ping database: %w", ErrUnavailable, err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	log.Printf("database connection established (driver=%s)", driver)
	return db, nil
}

// Handle is a database connection that may not be established yet. The
// first use attempts to connect, and failed attempts are retried at most once
// per cooldown so that a missing database does not stall every request.
type Handle struct {
	mu       sync.Mutex
	connect  func(ctx context.Context) (*gorm.DB, error)
	db       *gorm.DB
	lastErr  error
	lastTry  time.Time
	cooldown time.Duration
}

func NewHandle(connect func(ctx context.Context) (*gorm.DB, error), cooldown time.Duration) *Handle {
	return &Handle{connect: connect, cooldown: cooldown}
}

// Static wraps an already open connection.
func Static(db *gorm.DB) *Handle {
	return &Handle{db: db}
}

func (h *Handle) Get(ctx context.Context) (*gorm.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		return h.db, nil
	}
	if h.connect == nil {
		return nil, ErrUnavailable
	}

	if !h.lastTry.IsZero() && time.Since(h.lastTry) < h.cooldown {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, h.lastErr)
	}

	h.lastTry = time.Now()
	db, err := h.connect(ctx)
	if err != nil {
		slog.Error("error connecting to database", "error", err)
		h.lastErr = err
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	h.db = db
	return db, nil
}

func (h *Handle) Ping(ctx context.Context) error {
	db, err := h.Get(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		return nil
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	h.db = nil
	return sqlDB.Close()
}
