package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/studyhall/examd/internal/api/http"
	auth "github.com/studyhall/examd/internal/auth/middleware"
	"github.com/studyhall/examd/internal/config"
	"github.com/studyhall/examd/internal/db"
	"github.com/studyhall/examd/internal/events"
	"github.com/studyhall/examd/internal/exam"
	"github.com/studyhall/examd/internal/rbac"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh)
	roster := exam.NewSQLRoster(dbh)

	// --- Services ---
	attempts := exam.NewAttemptService(store, roster, events.NewRepo(dbh), nil)
	sections := exam.NewSectionService(store, nil)
	projector := exam.NewProjector(store)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, cfg.AllowDevLogin))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Teacher-only: publish a test definition
		pr.With(rbac.Require("test:create")).
			Post("/tests", api.UploadTestHandler(store))

		// Student flow
		pr.With(rbac.Require("attempt:start")).
			Post("/tests/{testID}/start", api.StartTestHandler(attempts))
		pr.With(rbac.Require("attempt:start")).
			Post("/tests/{testID}/sections/{sectionID}/start", api.StartSectionHandler(sections))
		pr.With(rbac.Require("attempt:answer")).
			Get("/tests/{testID}/sections/{sectionID}/questions", api.SectionQuestionsHandler(sections))
		pr.With(rbac.Require("attempt:answer")).
			Post("/answers", api.SubmitAnswerHandler(sections))
		pr.With(rbac.Require("attempt:answer")).
			Post("/tests/{testID}/sections/{sectionID}/answers", api.SubmitAnswersBulkHandler(sections))
		pr.With(rbac.Require("attempt:complete")).
			Post("/tests/{testID}/sections/{sectionID}/complete", api.CompleteSectionHandler(sections))
		pr.With(rbac.Require("attempt:complete")).
			Post("/tests/{testID}/complete", api.CompleteTestHandler(attempts))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/tests/{testID}/results", api.ResultsHandler(projector))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/tests/{testID}/review", api.ReviewHandler(projector))

		// Proctor/admin: force-expire an attempt whose clock ran out
		pr.With(rbac.Require("attempt:view-all")).
			Post("/attempts/{attemptID}/expire", api.ExpireAttemptHandler(attempts))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
