package handlers

import (
	"net/http"

	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/internal/middleware"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/resale"
	"ewaste-backend/internal/store"
	"ewaste-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Store    store.Store
	Tasks    *lifecycle.Service
	Resale   *resale.Service
	Hub      *websocket.Hub
	Verifier middleware.TokenVerifier
	Issuer   *middleware.JWTVerifier
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Post("/api/auth/login", Login(d.Store, d.Issuer))

	var live AgencyBroadcaster
	if d.Hub != nil {
		live = d.Hub
		// authentication handled in handler via query param
		r.Get("/ws", websocket.HandleWebSocket(d.Hub, d.Verifier, d.Tasks))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.Verifier))

		// Any role
		r.Get("/me", GetMe(d.Store))
		r.Get("/transactions", GetTransactions(d.Store))
		r.Get("/notifications", GetNotifications(d.Store))
		r.Post("/notifications/{id}/read", MarkNotificationRead(d.Store))
		r.Post("/fcm-token", RegisterFCMToken(d.Store))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleCitizen, models.RoleAgency))
			r.Get("/reports", GetReports(d.Tasks))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleCitizen))

			r.Post("/reports", CreateReport(d.Tasks))
			r.Get("/citizen/tasks", GetCitizenTasks(d.Tasks))
			r.Post("/tasks/{id}/rating", RateTask(d.Tasks))
			r.Post("/tasks/{id}/approve", ApproveTask(d.Tasks))
			r.Post("/tasks/{id}/reject", RejectTask(d.Tasks))
			r.Post("/tasks/{id}/citizen-photo", UploadCitizenPhoto(d.Tasks))

			r.Get("/rewards", GetRewards(d.Tasks))
			r.Post("/rewards/{id}/redeem", RedeemReward(d.Tasks))

			r.Post("/listings", CreateListing(d.Resale))
			r.Get("/listings", GetListings(d.Resale))
			r.Post("/listings/{id}/order", CreateOrder(d.Resale))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleVolunteer))

			r.Get("/volunteer/tasks", GetVolunteerTasks(d.Tasks))
			r.Post("/tasks/{id}/accept", AcceptTask(d.Tasks))
			r.Post("/tasks/{id}/verification", UploadVerification(d.Tasks))
			r.Post("/volunteer/location", UpdateVolunteerLocation(d.Tasks, live))

			r.Get("/volunteer/orders", GetVolunteerOrders(d.Resale))
			r.Post("/orders/{id}/pickup", VerifyOrderPickup(d.Resale))
			r.Post("/orders/{id}/device-check", CheckOrderDevice(d.Resale))
			r.Post("/orders/{id}/delivery", VerifyOrderDelivery(d.Resale))
			r.Post("/orders/{id}/payment", ConfirmOrderPayment(d.Resale))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAgency))

			r.Get("/agency/volunteers", GetAgencyVolunteers(d.Tasks))
			r.Get("/agency/reports/{id}/candidates", GetCandidates(d.Tasks))
			r.Post("/agency/tasks", AssignTask(d.Tasks))
			r.Get("/agency/tasks", GetAgencyTasks(d.Tasks))
		})
	})

	return r
}
