package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/joho/godotenv"

	"github.com/binhusmachado/creditrepair-pro/ai"
	"github.com/binhusmachado/creditrepair-pro/analyzer"
	"github.com/binhusmachado/creditrepair-pro/auth"
	"github.com/binhusmachado/creditrepair-pro/billing"
	"github.com/binhusmachado/creditrepair-pro/client"
	"github.com/binhusmachado/creditrepair-pro/config"
	"github.com/binhusmachado/creditrepair-pro/db"
	"github.com/binhusmachado/creditrepair-pro/dispute"
	"github.com/binhusmachado/creditrepair-pro/letter"
	"github.com/binhusmachado/creditrepair-pro/report"
)

const sweepInterval = time.Hour

func main() {
	_ = godotenv.Load()

	log.SetHandler(text.New(os.Stderr))

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("bootstrap database pool")
	}
	defer pool.Close()

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)

	clientRepo := client.NewRepository(pool)
	clientSvc := client.NewService(clientRepo)

	reportRepo := report.NewRepository(pool)
	reportSvc := report.NewService(pool, reportRepo)

	analyzerRepo := analyzer.NewRepository(pool)
	analyzerSvc := analyzer.NewService(pool, analyzerRepo, reportRepo)

	disputeRepo := dispute.NewRepository(pool)
	disputeSvc, err := dispute.NewService(pool, disputeRepo, analyzerSvc, dispute.Config{
		MaxItemsPerRound: cfg.MaxItemsPerRound,
		ResponseWindow:   time.Duration(cfg.ResponseWindowDays) * 24 * time.Hour,
	})
	if err != nil {
		log.WithError(err).Fatal("bootstrap dispute service")
	}

	letterRepo := letter.NewRepository(pool)
	letterSvc := letter.NewService(pool, letterRepo, clientSvc, reportRepo)
	if aiHelper := ai.NewHelper(cfg.OpenAIAPIKey); aiHelper.Enabled() {
		letterSvc = letterSvc.WithReasonGenerator(aiHelper)
	}

	billingRepo := billing.NewRepository(pool)
	billingSvc := billing.NewService(pool, billingRepo)
	if err := billingRepo.SeedPlans(ctx, billing.DefaultPlans()); err != nil {
		log.WithError(err).Fatal("seed subscription plans")
	}

	go runSweeper(ctx, disputeSvc)

	server := NewServer(authSvc, clientSvc, reportSvc, analyzerSvc, disputeSvc, letterSvc, billingSvc)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("api listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("http server")
	}
}

// runSweeper escalates rounds whose response window elapsed. One pass at
// boot, then on a fixed interval.
func runSweeper(ctx context.Context, svc *dispute.Service) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		successors, err := svc.SweepExpired(ctx)
		if err != nil {
			log.WithError(err).Error("expired round sweep")
		} else if len(successors) > 0 {
			log.WithField("successors", len(successors)).Info("escalated expired rounds")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
