package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/tannerhart/imagerbackend/config"
	"github.com/tannerhart/imagerbackend/database"
	"github.com/tannerhart/imagerbackend/handlers"
	"github.com/tannerhart/imagerbackend/pipeline"
	"github.com/tannerhart/imagerbackend/repository"
	"github.com/tannerhart/imagerbackend/vision"
	"github.com/tannerhart/imagerbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.ThumbnailsPath, cfg.UploadsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	folderRepo := repository.NewFolderRepository(db)
	imageRepo := repository.NewImageRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	analyzer := vision.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, vision.RetryPolicy{
		MaxAttempts: cfg.AnalysisMaxAttempts,
		BaseDelay:   cfg.AnalysisBaseDelay,
		Multiplier:  2.0,
	})

	orchestrator := pipeline.NewOrchestrator(folderRepo, imageRepo, analyzer)
	orchestrator.ThumbnailDir = cfg.ThumbnailsPath
	orchestrator.ThumbnailMaxSize = cfg.ThumbnailMaxSize

	log.Printf("Initializing batch worker pool (Workers: %d, Queue Size: %d)...", cfg.NumBatchWorkers, cfg.BatchQueueSize)
	batchProcessor := workers.NewBatchProcessor(orchestrator, cfg.BatchQueueSize, cfg.NumBatchWorkers)
	defer batchProcessor.Stop()

	if cfg.WatchEnabled {
		watcher, err := workers.NewWatcher(cfg.RootDirectory, batchProcessor, pipeline.Options{
			Concurrency:        cfg.BatchConcurrency,
			GenerateThumbnails: cfg.GenerateThumbnails,
		}, cfg.WatchDebounce)
		if err != nil {
			log.Fatalf("FATAL: Failed to start directory watcher: %v", err)
		}
		defer watcher.Close()
	}

	log.Printf("Scanning image folders under root: %s", cfg.RootDirectory)
	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Vision model: %s (max attempts: %d)", cfg.OpenAIModel, cfg.AnalysisMaxAttempts)
	log.Printf("Storing thumbnails in: %s", cfg.ThumbnailsPath)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	folderHandler := &handlers.FolderHandler{Cfg: cfg, Folders: folderRepo, Images: imageRepo, Processor: batchProcessor}
	batchHandler := &handlers.BatchHandler{Processor: batchProcessor}
	imageHandler := &handlers.ImageHandler{Images: imageRepo}
	favoriteHandler := &handlers.FavoriteHandler{Favorites: favoriteRepo}
	uploadHandler := &handlers.UploadHandler{Cfg: cfg, Processor: batchProcessor}

	r.Route("/api", func(r chi.Router) {
		r.Route("/folders", func(r chi.Router) {
			r.Get("/", folderHandler.ListFolders)
			r.Post("/process", folderHandler.ProcessFolder)
			r.Route("/{folder_id}", func(r chi.Router) {
				r.Get("/", folderHandler.GetFolder)
				r.Delete("/", folderHandler.DeleteFolder)
			})
		})

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", batchHandler.ListBatches)
			r.Route("/{batch_id}", func(r chi.Router) {
				r.Get("/", batchHandler.GetBatch)
				r.Post("/cancel", batchHandler.CancelBatch)
			})
		})

		r.Route("/images", func(r chi.Router) {
			r.Route("/{image_id}", func(r chi.Router) {
				r.Get("/", imageHandler.GetImage)
				r.Delete("/", imageHandler.DeleteImage)
			})
		})

		r.Get("/search", imageHandler.SearchImages)

		r.Route("/favorites", func(r chi.Router) {
			r.Post("/", favoriteHandler.CreateFavorite)
			r.Get("/", favoriteHandler.ListFavorites)
			r.Route("/{favorite_id}", func(r chi.Router) {
				r.Put("/", favoriteHandler.UpdateFavorite)
				r.Delete("/", favoriteHandler.DeleteFavorite)
			})
		})

		r.Post("/uploads", uploadHandler.UploadBatch)

		thumbnailSubDir := filepath.Base(cfg.ThumbnailsPath)
		r.Get(fmt.Sprintf("/%s/*", thumbnailSubDir), handlers.AssetServer(cfg.MediaStoragePath, thumbnailSubDir))
		log.Printf("Registered thumbnail server at /%s/*", thumbnailSubDir)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
