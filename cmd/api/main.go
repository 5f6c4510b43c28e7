package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/providers/payment"
	"server/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := infra.EnsureSchema(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Only providers with credentials configured are registered; a donation
	// request naming an unconfigured provider is rejected at the handler.
	var providers []payment.Provider
	if cfg.PayPalClientID != "" {
		paypal, err := payment.NewPayPalProvider(payment.PayPalOptions{
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
			BaseURL:      cfg.PayPalBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid paypal configuration")
		}
		providers = append(providers, paypal)
	}
	if cfg.PesapalConsumerKey != "" {
		pesapal, err := payment.NewPesapalProvider(payment.PesapalOptions{
			ConsumerKey:    cfg.PesapalConsumerKey,
			ConsumerSecret: cfg.PesapalConsumerSecret,
			BaseURL:        cfg.PesapalBaseURL,
			CallbackURL:    cfg.PublicBaseURL + "/v1/donations/pesapal/callback",
			IPNURL:         cfg.PublicBaseURL + "/v1/donations/pesapal/ipn",
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid pesapal configuration")
		}
		providers = append(providers, pesapal)
	}
	if cfg.PayGateWallet != "" {
		paygate, err := payment.NewPayGateProvider(payment.PayGateOptions{
			WalletAddress:    cfg.PayGateWallet,
			CallbackURL:      cfg.PublicBaseURL + "/v1/donations/paygate/callback",
			CheckoutProvider: cfg.PayGateCheckoutProvider,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid paygate configuration")
		}
		providers = append(providers, paygate)
	}
	if len(providers) == 0 {
		logger.Warn().Msg("no payment providers configured; donation checkout is disabled")
	}
	for _, p := range providers {
		logger.Info().Str("provider", string(p.Name())).Msg("payment provider enabled")
	}
	registry := payment.NewRegistry(providers...)

	donations := repo.NewDonationRepository(dbpool)
	settings := repo.NewSettingRepository(dbpool)
	content := repo.NewContentRepository(dbpool)
	reconciler := reconcile.New(donations, registry, logger)

	app := &handlers.App{
		Logger:          logger,
		Donations:       donations,
		Settings:        settings,
		Content:         content,
		Providers:       registry,
		Reconciler:      reconciler,
		ThankYouURL:     cfg.ThankYouURL,
		DefaultCurrency: cfg.DefaultCurrency,
		RecentLimit:     cfg.RecentDonations,
	}

	router := httpapi.NewRouter(app, logger, cfg.AllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
