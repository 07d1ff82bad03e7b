package main

import (
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Onboards a collection agency and its desk login.
//
//	go run add_admin_users.go <agency-id> "<agency name>" <email> <password> "<display name>"
func main() {
	if len(os.Args) != 6 {
		log.Fatal("usage: add_admin_users <agency-id> <agency-name> <email> <password> <name>")
	}
	agencyID, agencyName := os.Args[1], os.Args[2]
	email := strings.ToLower(strings.TrimSpace(os.Args[3]))
	password, name := os.Args[4], os.Args[5]

	// Get database connection string from environment
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("🔌 Connected to database")

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO agencies (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, agencyID, agencyName)
	if err != nil {
		log.Fatalf("❌ Failed to create agency %s: %v", agencyID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("⚠️  Agency already exists: %s", agencyID)
	} else {
		log.Printf("✅ Created agency: %s (%s)", agencyName, agencyID)
	}

	var exists bool
	if err := tx.Get(&exists, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email); err != nil {
		log.Fatalf("❌ Error checking for user %s: %v", email, err)
	}
	if exists {
		log.Printf("⚠️  User already exists: %s", email)
	} else {
		user := map[string]interface{}{
			"id":        uuid.New().String(),
			"email":     email,
			"password":  string(hashed),
			"name":      name,
			"role":      "agency",
			"agency_id": agencyID,
		}
		query := `
			INSERT INTO users (id, email, password, name, role, agency_id)
			VALUES (:id, :email, :password, :name, :role, :agency_id)
		`
		if _, err := tx.NamedExec(query, user); err != nil {
			log.Fatalf("❌ Failed to create user %s: %v", email, err)
		}
		log.Printf("✅ Created agency user: %s", email)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("\n📧 Login credentials:")
	log.Printf("  %s / %s (agency %s)", email, password, agencyID)
}
