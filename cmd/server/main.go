package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ewaste-backend/internal/config"
	"ewaste-backend/internal/database"
	"ewaste-backend/internal/handlers"
	"ewaste-backend/internal/jobs"
	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/internal/messaging"
	"ewaste-backend/internal/middleware"
	"ewaste-backend/internal/otp"
	"ewaste-backend/internal/resale"
	"ewaste-backend/internal/services"
	"ewaste-backend/internal/websocket"

	firebase "firebase.google.com/go/v4"
)

func fatal(title string, err error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("❌ FATAL ERROR: %s", title)
	log.Printf("   Error: %v", err)
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Fatal(err)
}

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 E-WASTE BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	ctx := context.Background()

	log.Println("📂 Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		fatal("Invalid configuration", err)
	}
	log.Println("✅ Configuration loaded")

	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		fatal("Database connection failed", err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		fatal("Database migrations failed", err)
	}
	log.Println("✅ Database migrations completed")

	log.Println("🌱 Seeding database with initial data...")
	if err := database.SeedUsers(db); err != nil {
		fatal("User seeding failed", err)
	}
	if err := database.SeedRewards(db); err != nil {
		fatal("Reward seeding failed", err)
	}
	log.Println("✅ Seed data ready")

	st := database.NewStore(db)

	jwtVerifier := middleware.NewJWTVerifier(cfg.JWTSecret)
	verifier := middleware.ChainVerifier{jwtVerifier}

	// Firebase backs push, photo storage and ID-token sign-in. Each is optional.
	var (
		push   services.PushSender
		images lifecycle.ImageStore
	)
	var app *firebase.App
	if cfg.Firebase.Configured() {
		app, err = services.NewFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			log.Printf("⚠️  Failed to initialize Firebase: %v (push, storage and Firebase sign-in disabled)", err)
		}
	} else {
		log.Println("⚠️  Firebase credentials not set (push, storage and Firebase sign-in disabled)")
	}
	if app != nil {
		if fcm, err := services.NewFCMService(ctx, app); err != nil {
			log.Printf("⚠️  Failed to initialize FCM: %v (push notifications disabled)", err)
		} else {
			push = fcm
			log.Println("✅ Firebase Cloud Messaging initialized")
		}

		if cfg.Firebase.StorageBucket != "" {
			if store, err := services.NewImageStore(ctx, app, cfg.Firebase.StorageBucket); err != nil {
				log.Printf("⚠️  Failed to initialize image storage: %v (photo uploads disabled)", err)
			} else {
				images = store
				log.Printf("✅ Image storage ready (bucket %s)", cfg.Firebase.StorageBucket)
			}
		}

		directory, err := services.NewFirestoreDirectory(ctx, app)
		if err != nil {
			log.Printf("⚠️  Failed to initialize Firestore: %v (claims-only Firebase sign-in)", err)
		} else {
			defer directory.Close()
		}

		var lookup services.IdentityLookup
		if directory != nil {
			lookup = directory
		}
		if fv, err := services.NewFirebaseVerifier(ctx, app, lookup); err != nil {
			log.Printf("⚠️  Failed to initialize Firebase Auth: %v", err)
		} else {
			verifier = append(verifier, fv)
			log.Println("✅ Firebase ID tokens accepted")
		}
	}

	var geocoder lifecycle.Geocoder
	if cfg.MapsAPIKey != "" {
		if g, err := services.NewGeocodingService(cfg.MapsAPIKey); err != nil {
			log.Printf("⚠️  Failed to initialize geocoding: %v (distances disabled)", err)
		} else {
			geocoder = g
			log.Println("✅ Google Maps geocoding initialized")
		}
	} else {
		log.Println("⚠️  GOOGLE_MAPS_API_KEY not set (distances disabled)")
	}

	var classifier lifecycle.Classifier
	if cfg.OpenAIAPIKey != "" {
		classifier = services.NewImageClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		log.Println("✅ Image classifier initialized")
	} else {
		log.Println("⚠️  OPENAI_API_KEY not set (photo verification will fail)")
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	dispatcher := services.NewDispatcher(st, push, wsHub)

	var publisher messaging.Publisher = messaging.NewDirectPublisher(dispatcher)
	var consumer *messaging.NotificationConsumer
	if cfg.RabbitMQURL != "" {
		rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("⚠️  Failed to connect to RabbitMQ: %v (delivering notifications in-process)", err)
		} else {
			defer rmq.Close()
			publisher = rmq
			consumer = messaging.NewNotificationConsumer(rmq, dispatcher)
			consumer.Start()
			log.Println("✅ RabbitMQ notification consumer started")
		}
	}

	outbox := messaging.NewOutboxWorker(st, publisher)
	outbox.Start()
	log.Println("✅ Outbox worker started")

	tasks := lifecycle.NewService(st, classifier, images, geocoder, cfg.Lifecycle)
	sales := resale.NewService(st, otp.NewCryptoSource(), resale.DefaultPriceTable)

	scheduler := jobs.NewScheduler(lifecycle.NewSweeper(tasks), tasks, outbox, jobs.Schedules{
		Sweep:           cfg.SweepSchedule,
		QuotaReset:      cfg.QuotaResetSchedule,
		OutboxRetention: cfg.OutboxRetention,
	})
	if err := scheduler.Start(); err != nil {
		fatal("Scheduler failed to start", err)
	}

	router := handlers.NewRouter(handlers.Deps{
		Store:    st,
		Tasks:    tasks,
		Resale:   sales,
		Hub:      wsHub,
		Verifier: verifier,
		Issuer:   jwtVerifier,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Server failed to start", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	scheduler.Stop()
	outbox.Stop()
	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
	}
	log.Println("👋 Server stopped")
}
