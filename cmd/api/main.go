package main

import (
	"context"
	"log"

	"diagram-backend/cmd"
	"diagram-backend/internal/app"
	"diagram-backend/internal/config"
	"diagram-backend/internal/database"

	"gorm.io/gorm"
)

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	dsn := cfg.MySQLDSN()
	connect := func(ctx context.Context) (*gorm.DB, error) {
		return database.NewDatabase(ctx, database.DriverMySQL, dsn)
	}

	a, err := app.New(context.Background(), cfg, connect)
	if err != nil {
		log.Fatalf("error initializing services: %v", err)
	}
	defer a.Close()

	// A failed connection is retried on later chat and feedback requests.
	if err := a.DB.Ping(context.Background()); err != nil {
		log.Printf("database not reachable, chat and feedback endpoints will return 503 until it is: %v", err)
	}

	cmd.RunServer(cfg, cmd.NewRouter(cfg, a))
}
