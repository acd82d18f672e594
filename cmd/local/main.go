package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"diagram-backend/cmd"
	"diagram-backend/internal/app"
	"diagram-backend/internal/config"
	"diagram-backend/internal/database"

	"github.com/caarlos0/env/v11"
	"gorm.io/gorm"
)

type LocalConfig struct {
	Root string `env:"ROOT" envDefault:"./diagram-chat"`
}

func main() {
	cmd.LoadEnvFile()

	var local LocalConfig
	if err := env.Parse(&local); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(filepath.Join(local.Root, "db"), os.ModePerm); err != nil {
		log.Fatalf("error creating data directory: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(local.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	path := filepath.Join(local.Root, "db", "diagram-chat.db")
	connect := func(ctx context.Context) (*gorm.DB, error) {
		return database.NewDatabase(ctx, database.DriverSQLite, path)
	}

	a, err := app.New(context.Background(), cfg, connect)
	if err != nil {
		log.Fatalf("error initializing services: %v", err)
	}
	defer a.Close()

	if err := a.DB.Ping(context.Background()); err != nil {
		log.Fatalf("error opening local database: %v", err)
	}

	slog.Info("starting local backend", "root", local.Root, "addr", cfg.ListenAddr(), "backend", a.Backend.Name())

	cmd.RunServer(cfg, cmd.NewRouter(cfg, a))
}
