package main

import (
	"context"
	"fmt"

	"finassist/internal/config"
	"finassist/internal/db"
	"finassist/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	database, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer database.Close()

	applied, err := db.Migrate(context.Background(), database)
	for _, filename := range applied {
		fmt.Printf("applied %s\n", filename)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if len(applied) == 0 {
		fmt.Println("schema is up to date")
	}
}
