package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agencies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('citizen', 'volunteer', 'agency')),
			agency_id TEXT REFERENCES agencies(id) ON DELETE SET NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS citizens (
			id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			streak INT NOT NULL DEFAULT 0,
			last_report_date TEXT,
			points INT NOT NULL DEFAULT 0 CHECK(points >= 0),
			total_points INT NOT NULL DEFAULT 0,
			exp INT NOT NULL DEFAULT 0,
			level INT NOT NULL DEFAULT 1,
			rank TEXT NOT NULL DEFAULT 'rookie',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS volunteers (
			id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			agency_id TEXT NOT NULL REFERENCES agencies(id),
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'available'
				CHECK(status IN ('available', 'assigned', 'working', 'unavailable')),
			pickups_today INT NOT NULL DEFAULT 0,
			last_reset TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			address TEXT NOT NULL DEFAULT '',
			points INT NOT NULL DEFAULT 0 CHECK(points >= 0),
			total_points INT NOT NULL DEFAULT 0,
			exp INT NOT NULL DEFAULT 0,
			level INT NOT NULL DEFAULT 1,
			rank TEXT NOT NULL DEFAULT 'rookie',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_volunteers_agency ON volunteers(agency_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_volunteers_status ON volunteers(status)`,

		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES citizens(id),
			location TEXT NOT NULL,
			waste_type TEXT NOT NULL DEFAULT '',
			amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL,
			image_hash TEXT NOT NULL,
			verification_result JSONB,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'matched', 'completed')),
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status)`,

		// Every accepted photo, across reports and task verifications
		`CREATE TABLE IF NOT EXISTS image_hashes (
			hash TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			agency_id TEXT NOT NULL REFERENCES agencies(id),
			report_id TEXT NOT NULL REFERENCES reports(id),
			citizen_id TEXT NOT NULL REFERENCES citizens(id),
			report JSONB NOT NULL,
			volunteers_assigned TEXT[] NOT NULL DEFAULT '{}',
			volunteers_accepted TEXT[] NOT NULL DEFAULT '{}',
			verification_image_url TEXT,
			citizen_verification_image_url TEXT,
			citizen_confirmation_status TEXT NOT NULL DEFAULT 'pending'
				CHECK(citizen_confirmation_status IN ('pending', 'done', 'notProperlyDone')),
			citizen_verification_deadline BIGINT,
			rating DOUBLE PRECISION CHECK(rating IS NULL OR (rating >= 0 AND rating <= 5)),
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at BIGINT,
			settled_by TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_agency ON tasks(agency_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_citizen ON tasks(citizen_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assigned ON tasks USING GIN(volunteers_assigned)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(citizen_verification_deadline, id)
			WHERE completed = FALSE AND citizen_verification_deadline IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS transactions (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			type TEXT NOT NULL CHECK(type IN ('earned_report', 'earned_collect', 'redeemed')),
			amount INT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			data JSONB NOT NULL DEFAULT '{}',
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS user_fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL DEFAULT 'android' CHECK(device_type IN ('ios', 'android', 'web')),
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_fcm_tokens_user ON user_fcm_tokens(user_id)`,

		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			seller_id TEXT NOT NULL REFERENCES users(id),
			report_id TEXT REFERENCES reports(id),
			model TEXT NOT NULL,
			purchase_year INT NOT NULL,
			condition TEXT NOT NULL CHECK(condition IN ('good', 'fair', 'poor', 'unknown')),
			price DOUBLE PRECISION NOT NULL,
			pickup_address TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'available' CHECK(status IN ('available', 'reserved', 'sold')),
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			listing_id TEXT NOT NULL REFERENCES listings(id),
			first_user TEXT NOT NULL REFERENCES users(id),
			end_user_id TEXT NOT NULL REFERENCES users(id),
			volunteer_id TEXT NOT NULL REFERENCES volunteers(id),
			agency_id TEXT NOT NULL REFERENCES agencies(id),
			pickup_address TEXT NOT NULL,
			destination_address TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('assigned', 'picked_up', 'completed', 'cancelled')),
			otp TEXT NOT NULL,
			otp2 TEXT NOT NULL,
			otp_failures INT NOT NULL DEFAULT 0,
			device_ok BOOLEAN,
			delivered_at BIGINT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_volunteer ON orders(volunteer_id)`,
		`ALTER TABLE orders ADD COLUMN IF NOT EXISTS otp_failures INT NOT NULL DEFAULT 0`,

		`CREATE TABLE IF NOT EXISTS rewards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			points_required INT NOT NULL CHECK(points_required > 0),
			stock INT NOT NULL DEFAULT 0 CHECK(stock >= 0),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS outbox_messages (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			payload JSONB NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT,
			published_at BIGINT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_messages(created_at, seq) WHERE published_at IS NULL`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}
