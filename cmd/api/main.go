package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/nam4792-debug/agologistics-sub001/internal/application"
	appaudit "github.com/nam4792-debug/agologistics-sub001/internal/application/audit"
	appdocs "github.com/nam4792-debug/agologistics-sub001/internal/application/documents"
	"github.com/nam4792-debug/agologistics-sub001/internal/config"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/analysis"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/documents"
	"github.com/nam4792-debug/agologistics-sub001/internal/domain/shipments"
	aiopenai "github.com/nam4792-debug/agologistics-sub001/internal/infra/ai/openai"
	mysqlp "github.com/nam4792-debug/agologistics-sub001/internal/infra/db/mysql"
	postgresp "github.com/nam4792-debug/agologistics-sub001/internal/infra/db/postgres"
	"github.com/nam4792-debug/agologistics-sub001/internal/infra/httpserver"
	minioStore "github.com/nam4792-debug/agologistics-sub001/internal/infra/storage"
	"github.com/nam4792-debug/agologistics-sub001/internal/middleware"
)

func main() {
	// .env is optional; config.yaml is the source of truth
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (mysql primary, postgres alternate)
	var (
		shipRepo     shipments.Repository
		docRepo      documents.Repository
		analysisRepo analysis.Repository
		dbChecker    middleware.HealthChecker
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		shipRepo = postgresp.NewShipmentRepository(db)
		docRepo = postgresp.NewDocumentRepository(db)
		analysisRepo = postgresp.NewAnalysisRepository(db)
		dbChecker = &middleware.DatabaseHealthChecker{DB: db}
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		shipRepo = mysqlp.NewShipmentRepository(db)
		docRepo = mysqlp.NewDocumentRepository(db)
		analysisRepo = mysqlp.NewAnalysisRepository(db)
		dbChecker = &middleware.DatabaseHealthChecker{DB: db}
	}

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init AI client
	gen := aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// init services
	auditSvc := appaudit.NewService(shipRepo, docRepo, analysisRepo, store, gen, application.SystemClock{})
	auditSvc.Concurrency = cfg.Audit.Concurrency
	auditSvc.BinaryPrefixLen = cfg.Audit.BinaryPrefixLen
	auditSvc.ExtractTokens = cfg.Audit.ExtractMaxTokens
	auditSvc.AuditTokens = cfg.Audit.AuditMaxTokens
	if cfg.Audit.CallTimeoutSeconds > 0 {
		auditSvc.CallTimeout = time.Duration(cfg.Audit.CallTimeoutSeconds) * time.Second
	}

	docsSvc := &appdocs.Service{
		Shipments: shipRepo,
		Documents: docRepo,
		Files:     store,
		Clock:     application.SystemClock{},
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	if cfg.RateLimit.Capacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	}

	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": dbChecker,
	}))
	mux.Get("/metrics", middleware.MetricsHandler())
	mux.Mount("/", httpserver.NewRouter(auditSvc, docsSvc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // audits wait on the model
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
