package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"formaflix-backend/internal/handlers"
	"formaflix-backend/internal/middleware"
	"formaflix-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	webhookHandler *handlers.WebhookHandler,
	courseHandler *handlers.CourseHandler,
	lessonHandler *handlers.LessonHandler,
	progressHandler *handlers.ProgressHandler,
	streamAdminHandler *handlers.StreamAdminHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Playback rate limiter (60 req/min per IP)
	playbackLimiter := middleware.NewRateLimiter(60, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Platform webhook, authenticated by secret path segment
	r.Post("/webhooks/stream/{secret}", webhookHandler.Receive)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Catalog Routes (public) ────
		r.Route("/courses", func(r chi.Router) {
			r.Get("/", courseHandler.List)
			r.Get("/{slug}", courseHandler.GetBySlug)

			r.Group(func(r chi.Router) {
				r.Use(playbackLimiter.Middleware)
				r.Get("/{id}/trailer/playback", courseHandler.TrailerPlayback)
			})

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/{id}/enroll", courseHandler.Enroll)
			})
		})

		// ──── Lesson Playback ────
		// Optional auth: free previews play anonymously, everything else
		// needs an enrolled user.
		r.Route("/lessons", func(r chi.Router) {
			r.Use(playbackLimiter.Middleware)
			r.Use(jwtAuth.OptionalMiddleware)
			r.Get("/{id}/playback", lessonHandler.Playback)
		})

		// ──── Progress & Library Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Patch("/progress", progressHandler.Upsert)
			r.Get("/library", progressHandler.Library)
		})

		// ──── Admin Routes ────
		r.Route("/admin", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireAdmin)

			r.Post("/courses", courseHandler.Create)
			r.Post("/courses/{id}/lessons", courseHandler.CreateLesson)

			r.Route("/stream/{kind}/{id}", func(r chi.Router) {
				r.Get("/asset", streamAdminHandler.GetAsset)
				r.Post("/ingest-url", streamAdminHandler.IngestFromURL)
				r.Post("/direct-upload", streamAdminHandler.CreateDirectUpload)
				r.Post("/upload-file", streamAdminHandler.UploadFile)
				r.Post("/refresh", streamAdminHandler.Refresh)
				r.Put("/require-signed", streamAdminHandler.SetRequireSigned)
				r.Delete("/asset", streamAdminHandler.Reset)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
