package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cloudos.jermis.io/internal/audit"
	"cloudos.jermis.io/internal/azure"
	"cloudos.jermis.io/internal/dashboard"
	"cloudos.jermis.io/internal/httpapi"
	"cloudos.jermis.io/internal/identity"
	"cloudos.jermis.io/internal/obs"
	"cloudos.jermis.io/internal/store/pg"
)

var version = "1.2.0"

func main() {
	// Local development reads .env; in production the environment is the
	// source of truth and a missing file is fine.
	_ = godotenv.Load()

	obs.Init()

	dsn := os.Getenv("JERMIS_PG_DSN")
	if dsn == "" {
		log.Fatal("JERMIS_PG_DSN is required")
	}
	secret := os.Getenv("JERMIS_JWT_SECRET")
	if secret == "" {
		log.Fatal("JERMIS_JWT_SECRET is required")
	}

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	issuer, err := identity.NewTokenIssuer(secret)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	idSvc, err := identity.NewService(store.Users(), store.Sessions(), issuer)
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}
	dashSvc, err := dashboard.NewService(store.Dashboards(), store.Users(), store.Audits())
	if err != nil {
		log.Fatalf("dashboard service: %v", err)
	}

	recorder := audit.NewRecorder(store.Audits())

	var sso *azure.Client
	if clientID := os.Getenv("JERMIS_AZURE_CLIENT_ID"); clientID != "" {
		sso, err = azure.New(azure.Config{
			ClientID:     clientID,
			ClientSecret: os.Getenv("JERMIS_AZURE_CLIENT_SECRET"),
			Authority:    os.Getenv("JERMIS_AZURE_AUTHORITY"),
			RedirectURI:  os.Getenv("JERMIS_AZURE_REDIRECT_URI"),
		})
		if err != nil {
			log.Fatalf("azure client: %v", err)
		}
	}

	frontendURL := os.Getenv("JERMIS_FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}

	var limiterOpts []httpapi.LimiterOption
	if raw := os.Getenv("JERMIS_LOGIN_MAX_ATTEMPTS"); raw != "" {
		if max, err := strconv.Atoi(raw); err == nil {
			limiterOpts = append(limiterOpts, httpapi.WithLimits(max, 15*time.Minute))
		}
	}

	api, err := httpapi.New(httpapi.Config{
		Identity:    idSvc,
		Dashboard:   dashSvc,
		Azure:       sso,
		Recorder:    recorder,
		Limiter:     httpapi.NewSensitiveLimiter(limiterOpts...),
		ReadyProbe:  httpapi.ReadyProbe{DB: store.DB()},
		FrontendURL: frontendURL,
		Version:     version,
	})
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	addr := os.Getenv("JERMIS_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.RateLimit(api.Handler(), 50, 25),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting jermis-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	// Flush whatever audit writes are still queued before the pool closes.
	recorder.Close()
	log.Println("Stopped")
}
