package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"firnline/api/internal/app"
	"firnline/api/internal/archive"
	"firnline/api/internal/config"
	"firnline/api/internal/export"
	"firnline/api/internal/radar"
	"firnline/api/internal/search"
	"firnline/api/internal/session"
	"firnline/api/internal/store"
	"firnline/api/internal/tiles"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	catalog := radar.NewCatalog(cfg.MetaDir)
	if err := catalog.Reload(); err != nil {
		log.Fatalf("radargram catalog failed to load from %s: %v", cfg.MetaDir, err)
	}
	log.Printf("Loaded %d radargrams from %s", catalog.Len(), cfg.MetaDir)

	dataStore := store.NewPostgresStore(db)

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessions.Close()

	archiveService := archive.New(cfg.ArchiveDir)
	exporter := export.NewService(dataStore)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}

	// The fallback scans live service records so search still answers when
	// Meilisearch is down. The closure breaks the search -> app cycle.
	var service *app.Service
	searchService := search.NewService(meiliClient, search.NewCatalogScan(func() []search.Record {
		return service.SearchRecords(context.Background())
	}))
	service = app.NewService(cfg, dataStore, sessions, catalog, searchService, archiveService, exporter)

	if n, err := service.ProvisionUsers(ctx); err != nil {
		log.Printf("WARNING: user provisioning error (will retry on next restart): %v", err)
	} else {
		log.Printf("Provisioned %d users", n)
	}
	service.SeedSearchIndex(ctx)

	var tileStore tiles.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		tileStore, err = tiles.NewObjectStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		log.Printf("Serving tiles from object store %s/%s", cfg.MinioEndpoint, cfg.MinioBucket)
	} else {
		tileStore = tiles.NewDirStore(cfg.StaticDir)
		log.Printf("Serving tiles from %s", cfg.StaticDir)
	}

	httpServer := app.NewHTTPServer(service, tileStore, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Firnline API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
