package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/middleware"
)

// Handlers groups every HTTP surface mounted by New.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Rooms     *handlers.RoomHandler
	Tutor     *handlers.TutorHandler
	Documents *handlers.DocumentHandler
	Payments  *handlers.PaymentHandler
	RoomFeed  http.HandlerFunc
	Metrics   http.Handler
}

func New(
	jwtAuth *middleware.JWTAuth,
	authLimiter *middleware.RateLimiter,
	accessLog func(http.Handler) http.Handler,
	h Handlers,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", h.Auth.Logout)
			})
		})

		// ──── User Routes ────
		r.Route("/users", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", h.Auth.Me)
			r.Put("/me", h.Auth.UpdateMe)
		})

		// ──── Study Room Routes ────
		r.Route("/rooms", func(r chi.Router) {
			// The event stream authenticates through ?token= since browsers cannot set headers on websockets.
			r.Get("/{id}/events", h.RoomFeed)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/", h.Rooms.List)
				r.Post("/", h.Rooms.Create)
				r.Post("/join-by-code", h.Rooms.JoinByCode)
				r.Get("/{id}", h.Rooms.Get)
				r.Post("/{id}/join", h.Rooms.Join)
				r.Post("/{id}/leave", h.Rooms.Leave)
				r.Get("/{id}/whiteboard", h.Rooms.GetWhiteboard)
				r.Post("/{id}/whiteboard", h.Rooms.UpdateWhiteboard)
				r.Post("/{id}/sessions", h.Rooms.StartSession)
				r.Post("/{id}/sessions/{sid}/end", h.Rooms.EndSession)
			})
		})

		// ──── AI Tutor Routes ────
		r.Route("/ai", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/conversations", h.Tutor.ListConversations)
			r.Post("/conversations", h.Tutor.CreateConversation)
			r.Get("/conversations/{id}/messages", h.Tutor.ListMessages)
			r.Post("/conversations/{id}/messages", h.Tutor.SendMessage)
			r.Post("/generate-summary", h.Tutor.GenerateSummary)
			r.Post("/generate-flashcards", h.Tutor.GenerateFlashcards)
			r.Get("/flashcards", h.Tutor.ListFlashcards)
			r.Post("/flashcards/{id}/review", h.Tutor.ReviewFlashcard)
			r.Post("/generate-practice-test", h.Tutor.GeneratePracticeTest)
			r.Get("/practice-tests", h.Tutor.ListPracticeTests)
		})

		// ──── Document Routes ────
		r.Route("/documents", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", h.Documents.List)
			r.Post("/upload", h.Documents.Upload)
			r.Post("/youtube", h.Documents.ImportYouTube)
			r.Get("/{id}", h.Documents.Get)
			r.Get("/{id}/download", h.Documents.Download)
			r.Delete("/{id}", h.Documents.Delete)
		})

		// ──── Payment Routes ────
		r.Route("/payment", func(r chi.Router) {
			r.Get("/subscription-plans", h.Payments.Plans)
			r.Post("/callback", h.Payments.Callback)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/create-payment", h.Payments.CreatePayment)
				r.Get("/subscription-status", h.Payments.Status)
				r.Post("/cancel-subscription", h.Payments.Cancel)
				r.Get("/payment-history", h.Payments.History)
			})
		})
	})

	return r
}
