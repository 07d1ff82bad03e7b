package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"ewaste-backend/internal/database"

	"github.com/joho/godotenv"
)

func main() {
	seed := flag.Bool("seed", false, "insert the demo agency, users and reward catalog")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration completed successfully!")

	if *seed {
		if err := database.SeedUsers(db); err != nil {
			log.Fatalf("Seeding users failed: %v", err)
		}
		if err := database.SeedRewards(db); err != nil {
			log.Fatalf("Seeding rewards failed: %v", err)
		}
	}

	var result struct {
		Users         int `db:"users"`
		Volunteers    int `db:"volunteers"`
		Reports       int `db:"reports"`
		OpenTasks     int `db:"open_tasks"`
		DueTasks      int `db:"due_tasks"`
		PendingOutbox int `db:"pending_outbox"`
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM volunteers) AS volunteers,
			(SELECT COUNT(*) FROM reports) AS reports,
			(SELECT COUNT(*) FROM tasks WHERE NOT completed) AS open_tasks,
			(SELECT COUNT(*) FROM tasks
				WHERE NOT completed AND citizen_verification_deadline <= EXTRACT(EPOCH FROM NOW())::BIGINT) AS due_tasks,
			(SELECT COUNT(*) FROM outbox_messages WHERE published_at IS NULL) AS pending_outbox
	`
	if err := db.Get(&result, query); err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Users:                   %d\n", result.Users)
	fmt.Printf("Volunteers:              %d\n", result.Volunteers)
	fmt.Printf("Reports:                 %d\n", result.Reports)
	fmt.Printf("Open tasks:              %d\n", result.OpenTasks)
	fmt.Printf("Awaiting auto-confirm:   %d\n", result.DueTasks)
	fmt.Printf("Undelivered outbox rows: %d\n", result.PendingOutbox)
	fmt.Println("============================================================")
}
