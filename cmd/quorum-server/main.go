// Package main provides the quorum API server: run history over HTTP plus
// a live progress event stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamilpajak/quorum/internal/api"
	"github.com/kamilpajak/quorum/internal/auth"
	"github.com/kamilpajak/quorum/internal/database"
	"github.com/kamilpajak/quorum/internal/progress"
)

func main() {
	var (
		port        = flag.String("port", getEnv("PORT", "8080"), "Server port")
		migrateOnly = flag.Bool("migrate", false, "Run migrations and exit")
	)
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	log.Println("Running database migrations...")
	if err := database.Migrate(dbURL); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations complete")

	if *migrateOnly {
		return
	}

	ctx := context.Background()
	db, err := database.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Auth is optional: without an issuer the server runs open, which is
	// the local single-user mode.
	var verifier *auth.Verifier
	if issuer := os.Getenv("QUORUM_AUTH_ISSUER"); issuer != "" {
		verifier, err = auth.NewVerifier(auth.Config{
			Issuer:   issuer,
			Audience: os.Getenv("QUORUM_AUTH_AUDIENCE"),
			JWKSURL:  os.Getenv("QUORUM_AUTH_JWKS_URL"),
		})
		if err != nil {
			log.Fatalf("Failed to create auth verifier: %v", err)
		}
	} else {
		log.Println("QUORUM_AUTH_ISSUER not set, serving without authentication")
	}

	hub := progress.NewHub()
	defer hub.Close()

	server := api.NewServer(api.Config{
		Store:    db,
		Verifier: verifier,
		Hub:      hub,
	})

	addr := fmt.Sprintf(":%s", *port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     server,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
