// main.go - The entry point and server wiring.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/khata_ocr/configs"
	"github.com/bosocmputer/khata_ocr/internal/ai"
	"github.com/bosocmputer/khata_ocr/internal/api"
	"github.com/bosocmputer/khata_ocr/internal/khata"
	"github.com/bosocmputer/khata_ocr/internal/processor"
	"github.com/bosocmputer/khata_ocr/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Open roster and mark storage
	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	repos, err := storage.Open(startCtx, configs.STORAGE_BACKEND, configs.MONGO_URI, configs.MONGO_DB_NAME,
		time.Duration(configs.ROSTER_CACHE_TTL_SECONDS)*time.Second)
	startCancel()
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", configs.STORAGE_BACKEND, err)
	}

	// Step 2: Vision provider behind timeout, circuit breaker and fallback
	vision, err := ai.CreateGuardedProvider()
	if err != nil {
		log.Fatalf("Failed to create vision provider: %v", err)
	}

	// Step 3: Pipeline, review sessions and image intake
	extractor := khata.NewExtractor(vision, configs.MAX_KHATA_IMAGES, configs.ROLL_NUMBER_WIDTH)
	pipeline := khata.NewPipeline(extractor, repos.Roster, repos.Marks)

	sessions := api.NewSessionStore(time.Duration(configs.SESSION_TTL_MINUTES) * time.Minute)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go sessions.RunJanitor(janitorCtx, time.Minute)

	intake := api.NewIntake(processor.Options{
		Enhance:      configs.ENABLE_IMAGE_PREPROCESSING,
		MaxDimension: configs.MAX_IMAGE_DIMENSION,
		MaxBytes:     configs.MAX_IMAGE_BYTES,
	}, configs.MAX_KHATA_IMAGES)

	handler := api.NewHandler(pipeline, sessions, intake, repos.Roster, repos.Marks)
	router := api.NewRouter(handler, configs.ALLOWED_ORIGINS)

	// Step 4: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    30 * time.Second, // multipart uploads of up to five pages
		WriteTimeout:   3 * time.Minute,  // Allow up to 3 minutes for AI processing
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting server on :%s (provider=%s, storage=%s)", configs.PORT, vision.GetProviderName(), configs.STORAGE_BACKEND)
		log.Println("API Endpoints:")
		log.Println("  POST   /api/v1/khata/extract")
		log.Println("  GET    /api/v1/khata/sessions/:id")
		log.Println("  POST   /api/v1/khata/sessions/:id/{rows,back,proceed,confirm,cancel}")
		log.Println("  PATCH  /api/v1/khata/sessions/:id/rows/:index")
		log.Println("  DELETE /api/v1/khata/sessions/:id/rows/:index")
		log.Println("  GET    /api/v1/classes/:classId/students")
		log.Println("  POST   /api/v1/classes/:classId/students")
		log.Println("  GET    /api/v1/marks")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := repos.Close(ctx); err != nil {
		log.Printf("Failed to close storage: %v", err)
	}

	log.Println("Server exited")
}
