package main

import (
	"context"
	"flag"
	"log"
	"os"

	"letscollab-be/internal/repository/unitofwork"
	"letscollab-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	collaborators := flag.Int("collaborators", 3, "number of collaborators to add next to the owner")
	title := flag.String("title", "Demo board", "title of the seeded board")
	flag.Parse()

	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo board...")
	seeded, err := SeedDemoBoard(context.Background(), unitofwork.NewRepositoryFactory(db), *title, *collaborators)
	if err != nil {
		log.Fatalf("Error: seeding failed: %v", err)
	}

	secret := os.Getenv("JWT_SECRET")
	seeded.Print(secret)
}
