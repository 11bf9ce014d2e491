package main

import (
	"flag"
	"log"

	"letscollab-be/internal/config"
	"letscollab-be/internal/model"
	"letscollab-be/pkg/database"

	"gorm.io/gorm"
)

// postMigrationSQL holds what AutoMigrate cannot express: partial indexes and
// the updated_at trigger that keeps raw SQL writes honest.
var postMigrationSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_boards_owner_updated ON boards (owner_id, updated_at DESC) WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_boards_elements_gin ON boards USING GIN (elements jsonb_path_ops);`,

	`CREATE OR REPLACE FUNCTION set_current_timestamp_updated_at() RETURNS trigger LANGUAGE plpgsql AS $$
	BEGIN
	  NEW.updated_at = now();
	  RETURN NEW;
	END; $$;`,
	`DROP TRIGGER IF EXISTS set_boards_updated_at ON boards;`,
	`CREATE TRIGGER set_boards_updated_at BEFORE UPDATE ON boards
	 FOR EACH ROW EXECUTE FUNCTION set_current_timestamp_updated_at();`,
}

func migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("[WARN] pgcrypto extension not created: %v", err)
	}

	if err := db.AutoMigrate(&model.Board{}, &model.BoardCollaborator{}); err != nil {
		return err
	}

	for _, stmt := range postMigrationSQL {
		if err := db.Exec(stmt).Error; err != nil {
			log.Printf("[WARN] post-migration statement failed: %v", err)
		}
	}
	return nil
}

func main() {
	reset := flag.Bool("reset", false, "drop board tables before migrating")
	flag.Parse()

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	if *reset {
		if cfg.IsProduction() {
			log.Fatal("refusing -reset in production")
		}
		if err := db.Migrator().DropTable(&model.BoardCollaborator{}, &model.Board{}); err != nil {
			log.Fatalf("reset: %v", err)
		}
		log.Println("Dropped boards and board_collaborators")
	}

	if err := migrate(db); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}
	log.Println("Migration complete")
}
