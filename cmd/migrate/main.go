package main

import (
	"log"

	"metabolite-assistant-be/internal/config"
	"metabolite-assistant-be/internal/model"
	"metabolite-assistant-be/pkg/database"
)

func main() {
	cfg := config.Load()

	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")

	// gen_random_uuid() is built in from Postgres 13; older servers need pgcrypto.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to create pgcrypto extension: %v. Continuing...", err)
	}

	log.Println("Step 2: Running AutoMigrate for the exchange archive...")

	if err := database.Migrate(db, &model.AssistantExchange{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating indexes...")

	postMigrationSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_assistant_exchanges_session_started
		 ON assistant_exchanges (session_id, started_at);`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("Success: Exchange archive migration completed.")
}
