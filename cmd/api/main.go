package main

import (
	"net/http"
	"os"
	"time"

	"pet-medical-access/internal/adapters/auth/idp"
	"pet-medical-access/internal/adapters/delivery/devlog"
	"pet-medical-access/internal/adapters/delivery/smsgw"
	"pet-medical-access/internal/platform/logger"
	"pet-medical-access/internal/ports/auth"
	"pet-medical-access/internal/ports/delivery"
	"pet-medical-access/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	// Verifier opcional: sin AUTH_BASE_URL corre en modo dev (debug headers).
	var verifier auth.AuthVerifier
	if baseURL := os.Getenv("AUTH_BASE_URL"); baseURL != "" {
		client, err := idp.NewClient(idp.Config{
			BaseURL: baseURL,
			APIKey:  os.Getenv("AUTH_API_KEY"),
		})
		if err != nil {
			log.Error("idp client init failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		verifier = idp.NewVerifier(client)
	}

	// Delivery del OTP: gateway real si está configurado, log local si no.
	var sender delivery.Sender
	if gwURL := os.Getenv("SMS_GATEWAY_URL"); gwURL != "" {
		client, err := smsgw.NewClient(smsgw.Config{
			BaseURL: gwURL,
			APIKey:  os.Getenv("SMS_GATEWAY_API_KEY"),
		})
		if err != nil {
			log.Error("sms gateway init failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		sender = client
	} else {
		sender = devlog.New(log)
	}

	sweepInterval := 5 * time.Minute
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Error("invalid SWEEP_INTERVAL", map[string]any{"value": v})
			os.Exit(1)
		}
		sweepInterval = d
	}

	r := router.NewRouter(router.Options{
		AuthVerifier:  verifier,
		Sender:        sender,
		Log:           log,
		SweepInterval: sweepInterval,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
