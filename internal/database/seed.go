package database

import (
	"log"
	"time"

	"ewaste-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const demoAgencyID = "agency-mumbai-west"

// SeedUsers creates a demo agency with one agency login, two volunteers and a citizen.
func SeedUsers(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding demo users...")

	now := time.Now().Unix()
	if _, err := db.Exec(`INSERT INTO agencies (id, name, created_at) VALUES ($1, $2, $3)`,
		demoAgencyID, "Mumbai West Collection", now); err != nil {
		return err
	}

	users := []struct {
		email, password, name, role string
		lat, lng                    float64
	}{
		{"agency@ewaste.dev", "agency123", "Mumbai West Desk", models.RoleAgency, 0, 0},
		{"volunteer1@ewaste.dev", "volunteer123", "Asha Patil", models.RoleVolunteer, 19.0596, 72.8295},
		{"volunteer2@ewaste.dev", "volunteer123", "Rohan Mehta", models.RoleVolunteer, 19.1136, 72.8697},
		{"citizen@ewaste.dev", "citizen123", "Neha Sharma", models.RoleCitizen, 0, 0},
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range users {
		hashed, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := map[string]interface{}{
			"id":        uuid.New().String(),
			"email":     u.email,
			"password":  string(hashed),
			"name":      u.name,
			"role":      u.role,
			"agency_id": nil,
			"now":       now,
		}
		if u.role != models.RoleCitizen {
			user["agency_id"] = demoAgencyID
		}

		if _, err := tx.NamedExec(`
			INSERT INTO users (id, email, password, name, role, agency_id, created_at, updated_at)
			VALUES (:id, :email, :password, :name, :role, :agency_id, :now, :now)
		`, user); err != nil {
			return err
		}

		switch u.role {
		case models.RoleCitizen:
			_, err = tx.NamedExec(`
				INSERT INTO citizens (id, username, email, created_at, updated_at)
				VALUES (:id, :name, :email, :now, :now)
			`, user)
		case models.RoleVolunteer:
			user["lat"], user["lng"] = u.lat, u.lng
			_, err = tx.NamedExec(`
				INSERT INTO volunteers (id, agency_id, username, email, latitude, longitude, created_at, updated_at)
				VALUES (:id, :agency_id, :name, :email, :lat, :lng, :now, :now)
			`, user)
		}
		if err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", u.email, u.role)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Println("✓ Successfully seeded demo users")
	log.Println("  📧 Agency:    agency@ewaste.dev / agency123")
	log.Println("  📧 Volunteer: volunteer1@ewaste.dev / volunteer123")
	log.Println("  📧 Citizen:   citizen@ewaste.dev / citizen123")
	return nil
}

// SeedRewards fills an empty rewards catalog.
func SeedRewards(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM rewards"); err != nil {
		return err
	}
	if count > 0 {
		log.Println("✓ Rewards already seeded, skipping...")
		return nil
	}

	rewards := []models.Reward{
		{Name: "Metro card top-up ₹100", PointsRequired: 50, Stock: 200},
		{Name: "Reusable steel bottle", PointsRequired: 120, Stock: 80},
		{Name: "Sapling kit", PointsRequired: 80, Stock: 150},
		{Name: "Solar power bank", PointsRequired: 400, Stock: 20},
	}

	for _, r := range rewards {
		if _, err := db.Exec(`
			INSERT INTO rewards (id, name, image_url, points_required, stock)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), r.Name, r.ImageURL, r.PointsRequired, r.Stock); err != nil {
			return err
		}
	}

	log.Printf("✓ Seeded %d rewards", len(rewards))
	return nil
}
