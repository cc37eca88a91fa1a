package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/novinshop/paycore/pkg/config"
	"github.com/novinshop/paycore/pkg/gateway"
	"github.com/novinshop/paycore/pkg/gateway/idpay"
	"github.com/novinshop/paycore/pkg/gateway/paypal"
	"github.com/novinshop/paycore/pkg/gateway/zarinpal"
	"github.com/novinshop/paycore/pkg/metrics"
	"github.com/novinshop/paycore/pkg/models"
	"github.com/novinshop/paycore/pkg/notify"
	"github.com/novinshop/paycore/pkg/orders"
	"github.com/novinshop/paycore/pkg/payments"
	"github.com/novinshop/paycore/pkg/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return err
	}
	if err := models.AutoMigrate(db); err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if len(registry.Names()) == 0 {
		return errors.New("no payment gateway configured")
	}
	logger.Info("gateways registered", "gateways", registry.Names(), "default", cfg.DefaultGateway)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(promReg)

	orderStore := orders.NewGormStore(db)
	orch := payments.NewOrchestrator(payments.Config{
		Store:           payments.NewGormStore(db),
		Orders:          orderStore,
		Reconciler:      orderStore,
		Gateways:        registry,
		Notifier:        notify.NewLogNotifier(logger),
		Metrics:         m,
		Logger:          logger,
		PublicBaseURL:   cfg.PublicBaseURL,
		FrontendBaseURL: cfg.FrontendBaseURL,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	web.NewHandler(orch, logger).Register(router)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// buildRegistry registers every gateway whose credentials are present. A
// present but broken credential block aborts startup.
func buildRegistry(cfg *config.Config) (*gateway.Registry, error) {
	registry := gateway.NewRegistry(cfg.DefaultGateway)

	if cfg.ZarinPal.MerchantID != "" {
		client, err := zarinpal.New(cfg.ZarinPal.MerchantID, cfg.ZarinPal.Sandbox, cfg.GatewayTimeout)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(client); err != nil {
			return nil, err
		}
	}

	if cfg.IDPay.APIKey != "" {
		client, err := idpay.New(cfg.IDPay.APIKey, cfg.IDPay.Sandbox, cfg.GatewayTimeout)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(client); err != nil {
			return nil, err
		}
	}

	if cfg.PayPal.ClientID != "" || cfg.PayPal.ClientSecret != "" {
		client, err := paypal.New(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.Live, cfg.PayPal.Currency, cfg.GatewayTimeout)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(client); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
