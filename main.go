package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-index/internal/database"
	"media-index/internal/extract"
	"media-index/internal/geocode"
	"media-index/internal/handlers"
	"media-index/internal/logging"
	"media-index/internal/middleware"
	"media-index/internal/scanner"
	"media-index/internal/startup"
	"media-index/internal/watcher"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	db, err := database.New(config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to open catalog: %v", err)
	}
	defer db.Close()

	var geocoder *geocode.Service
	if config.GeocodeEnabled {
		geocoder = geocode.New(db, geocode.NewNominatim(config.GeocodeURL))
		logging.Info("Reverse geocoding enabled")
	}

	extractor := &extract.ForFile{
		Image: extract.NewImageExtractor(),
		Video: extract.NewVideoExtractor(),
	}
	sc := scanner.New(db, extractor, geocoder, config.MediaDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.ScanOnStartup {
		go func() {
			if _, err := sc.FullScan(ctx, "startup"); err != nil && err != scanner.ErrScanInProgress {
				logging.Error("Startup scan failed: %v", err)
			}
		}()
	}
	sc.Schedule(ctx, config.ScanInterval)

	var w *watcher.Watcher
	if config.WatcherEnabled {
		w = watcher.New(config.MediaDir, sc)
		if err := w.Start(ctx); err != nil {
			logging.Fatal("Failed to start watcher: %v", err)
		}
	}

	h := handlers.New(db, sc, w, config.MediaDir, config.NewFilesThreshold)
	router := setupRouter(h)

	loggedHandler := middleware.Logger(middleware.DefaultLoggingConfig())(router)
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, sc, w, cancel)

	logging.Info("Listening on :%s (started in %s)", config.Port, time.Since(startTime).Round(time.Millisecond))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Probes and metrics
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadyCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Query endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/random", h.RandomFiles).Methods("GET")
	api.HandleFunc("/files", h.ListFiles).Methods("GET")
	api.HandleFunc("/related", h.RelatedFiles).Methods("GET")
	api.HandleFunc("/anniversary", h.AnniversaryFiles).Methods("GET")
	api.HandleFunc("/file/metadata", h.FileMetadata).Methods("GET")
	api.HandleFunc("/stats", h.Stats).Methods("GET")

	// Mutations
	api.HandleFunc("/favorite", h.SetFavorite).Methods("POST")
	api.HandleFunc("/rating", h.SetRating).Methods("POST")
	api.HandleFunc("/burst", h.UpdateBurst).Methods("POST")
	api.HandleFunc("/delete", h.DeleteFile).Methods("POST")
	api.HandleFunc("/edit", h.MarkForEdit).Methods("POST")
	api.HandleFunc("/restore", h.RestoreFile).Methods("POST")
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/maintenance", h.TriggerMaintenance).Methods("POST")

	return r
}

func handleShutdown(srv *http.Server, sc *scanner.Scanner, w *watcher.Watcher, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Received %s, shutting down", sig)
	cancel()

	if w != nil {
		w.Stop()
		logging.Info("Watcher stopped")
	}
	sc.Stop()
	logging.Info("Scanner stopped")

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelTimeout()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		logging.Info("HTTP server stopped")
	}
}
