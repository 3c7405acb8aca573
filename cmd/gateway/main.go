package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/lingopeak/exam-backend/internal/api/http"
	auth "github.com/lingopeak/exam-backend/internal/auth/middleware"
	"github.com/lingopeak/exam-backend/internal/config"
	"github.com/lingopeak/exam-backend/internal/db"
	"github.com/lingopeak/exam-backend/internal/exam"
	"github.com/lingopeak/exam-backend/internal/rbac"
	"github.com/lingopeak/exam-backend/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewStore(dbh)

	// --- Blob storage ---
	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", auth.RegisterHandler(dbh))
	r.Post("/auth/login", auth.LoginHandler(dbh, authSvc))

	// Protected API (JWT -> subject+role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, bs)
		})

		// Admin authoring
		pr.With(rbac.Require("section:create")).Post("/reading", api.CreateReadingSectionHandler(store))
		pr.With(rbac.Require("section:create")).Post("/listening", api.CreateListeningSectionHandler(store, bs))
		pr.With(rbac.Require("section:create")).Post("/speaking", api.CreateSpeakingSectionHandler(store, bs))
		pr.With(rbac.Require("section:create")).Post("/writing", api.CreateWritingSectionHandler(store, bs))
		pr.With(rbac.Require("section:delete")).Delete("/sections/{sectionID}", api.DeleteSectionHandler(store))

		// Content
		pr.With(rbac.Require("section:view")).Get("/sections", api.ListSectionsHandler(store))
		pr.With(rbac.Require("section:view")).Get("/reading/{sectionID}", api.GetReadingSectionHandler(store))
		pr.With(rbac.Require("section:view")).Get("/listening/{sectionID}", api.GetListeningSectionHandler(store))
		pr.With(rbac.Require("section:view")).Get("/speaking/{sectionID}", api.GetSpeakingSectionHandler(store))
		pr.With(rbac.Require("section:view")).Get("/writing/{sectionID}", api.GetWritingSectionHandler(store))

		// Student submissions
		pr.With(rbac.Require("submit:answers")).Post("/reading/{sectionID}/submit", api.SubmitReadingHandler(store))
		pr.With(rbac.Require("submit:answers")).Post("/listening/{sectionID}/submit", api.SubmitListeningHandler(store))
		pr.With(rbac.Require("submit:recording")).Post("/speaking/{sectionID}/submit", api.SubmitSpeakingHandler(store, bs))
		pr.With(rbac.Require("submit:essay")).Post("/writing/{sectionID}/submit", api.SubmitWritingHandler(store))

		// Review
		pr.With(rbac.RequireAny("review:view-own", "review:view-any")).
			Get("/speaking/{sectionID}/review", api.GetSpeakingReviewHandler(store))
		pr.With(rbac.RequireAny("review:view-own", "review:view-any")).
			Get("/writing/{sectionID}/review", api.GetWritingReviewHandler(store))
		pr.With(rbac.Require("review:write")).
			Post("/speaking/{sectionID}/review", api.PostSpeakingReviewHandler(store))
		pr.With(rbac.Require("review:write")).
			Post("/writing/{sectionID}/review", api.PostWritingReviewHandler(store))
	})

	log.Printf("gateway listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
