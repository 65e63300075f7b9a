package main

import (
	"context"
	"log"
	"time"

	"ai-chatbot-be/internal/config"
	"ai-chatbot-be/pkg/database"
	"ai-chatbot-be/pkg/vectorstore/postgres"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.Debug)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Println("Migrating vector store schema...")
	if err := postgres.New(db).Migrate(ctx); err != nil {
		log.Fatalf("Error: migration failed: %v", err)
	}
	log.Println("Migration complete")
}
