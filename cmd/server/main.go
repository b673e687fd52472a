package main

import (
	"encoding/json"
	"net/http"

	"chapchap-pay/internal/checkout"
	"chapchap-pay/internal/config"
	"chapchap-pay/internal/db"
	"chapchap-pay/internal/logger"
	"chapchap-pay/internal/metrics"
	"chapchap-pay/internal/middleware"
	"chapchap-pay/internal/order"
	"chapchap-pay/internal/payment"
	"chapchap-pay/internal/payment/webhook"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo)

	paymentRepo := payment.NewRepository(database)
	gateway := payment.NewChapChapGateway(cfg.CCPAPIKey, cfg.CCPEncryptionKey, cfg.CCPAPIURL)
	initiator := payment.NewInitiator(gateway, orderRepo, paymentRepo, cfg)

	checkoutHandler := checkout.NewHandler(initiator, orderSvc)
	webhookHandler := webhook.NewHandler(orderSvc, gateway, paymentRepo)

	router := setupRouter(checkoutHandler, webhookHandler)

	handler := logger.RequestIDMiddleware(
		logger.LoggingMiddleware(
			middleware.RateLimitMiddleware(router),
		),
	)

	logger.L().Info("🚀 server running",
		zap.String("port", cfg.AppPort),
		zap.Bool("sandbox", gateway.Sandbox()),
	)
	if err := http.ListenAndServe(":"+cfg.AppPort, handler); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

// setupRouter wires the HTTP routes. Split out so tests can exercise the
// routing table without opening a listener.
func setupRouter(checkoutHandler *checkout.Handler, webhookHandler *webhook.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /checkout/pay", checkoutHandler.HandlePay)
	mux.HandleFunc("POST /orders/status", checkoutHandler.HandleStatus)
	mux.HandleFunc("POST /webhook/chapchap", webhookHandler.HandleNotification)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(metrics.Snapshot())
	})

	return mux
}
