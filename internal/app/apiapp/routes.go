package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
	botgatewaysvc "github.com/areut/bookmarket/backend/internal/services/botgateway"
	catalogsvc "github.com/areut/bookmarket/backend/internal/services/catalog"
	dispatchsvc "github.com/areut/bookmarket/backend/internal/services/dispatch"
	purchasesvc "github.com/areut/bookmarket/backend/internal/services/purchases"
	requestsvc "github.com/areut/bookmarket/backend/internal/services/requests"
	"github.com/areut/bookmarket/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	JWTManager        *authsvc.JWTManager
	PurchaseService   *purchasesvc.Service
	RequestService    *requestsvc.Service
	BotGateway        *botgatewaysvc.Service
	DispatchService   *dispatchsvc.Service
	CatalogService    *catalogsvc.Service
	PaymentConfigRepo *pgrepo.PaymentConfigRepo
	ProgressRepo      *pgrepo.ProgressRepo
	StreamPublisher   handlers.StreamPublisher
	Logger            *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService)
	requestHandler := handlers.NewRequestHandler(deps.RequestService)
	botGatewayHandler := handlers.NewBotGatewayHandler(deps.BotGateway)
	dispatchHandler := handlers.NewDispatchHandler(deps.DispatchService)
	catalogHandler := handlers.NewCatalogHandler(deps.CatalogService)
	paymentConfigHandler := handlers.NewPaymentConfigHandler(deps.PaymentConfigRepo)
	progressHandler := handlers.NewProgressHandler(deps.ProgressRepo, deps.StreamPublisher, deps.Logger)

	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)
	adminMW := RequireRole(authsvc.RoleAdmin)

	r.Get("/healthz", healthHandler.Get)

	r.Get("/books", catalogHandler.List)
	r.Get("/books/{id}", catalogHandler.Get)
	r.Get("/payment-options", paymentConfigHandler.ListActive)
	r.Get("/contacts", requestHandler.Contacts)

	r.Route("/purchases", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/", purchaseHandler.Initiate)
		r.Get("/{id}", purchaseHandler.Get)
		r.Post("/{id}/payment", purchaseHandler.BeginPayment)
		r.Post("/{id}/proof", purchaseHandler.UploadProof)
	})

	r.Route("/requests", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/", requestHandler.Create)
		r.Get("/", requestHandler.ListMine)
		r.Get("/{id}", requestHandler.Get)
	})

	r.Route("/progress", func(r chi.Router) {
		r.Use(authMW)
		r.Put("/", progressHandler.Upsert)
		r.Get("/", progressHandler.ListMine)
	})

	// Dispatch does its own tier checks; auth context is attached when a
	// bearer token is present, but anonymous templates stay reachable.
	r.Post("/notifications/dispatch", optionalAuth(deps.JWTManager)(dispatchHandler.Dispatch))

	r.Route("/bot", func(r chi.Router) {
		r.Post("/purchase-info", botGatewayHandler.PurchaseInfo)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMW, adminMW)
		r.Get("/purchases", purchaseHandler.List)
		r.Get("/purchases/counts", purchaseHandler.Counts)
		r.Post("/purchases/{id}/approve", purchaseHandler.Approve)
		r.Post("/purchases/{id}/reject", purchaseHandler.Reject)
		r.Get("/requests", requestHandler.AdminList)
		r.Get("/requests/stats", requestHandler.Stats)
		r.Post("/requests/{id}/status", requestHandler.UpdateStatus)
		r.Delete("/requests/{id}", requestHandler.Delete)
		r.Get("/payment-configs", paymentConfigHandler.AdminList)
		r.Post("/payment-configs", paymentConfigHandler.Create)
		r.Post("/payment-configs/{id}/active", paymentConfigHandler.SetActive)
		r.Put("/books/{id}", catalogHandler.Update)
	})
}
