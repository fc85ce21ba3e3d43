package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Dispatcher
	api.HandleFunc("/status", handler.GetStatus).Methods("GET")
	api.HandleFunc("/cycle", handler.RunCycle).Methods("POST")

	// Watchlist
	api.HandleFunc("/watchlist", handler.GetWatchlist).Methods("GET")
	api.HandleFunc("/watchlist", handler.AddToWatchlist).Methods("POST")
	api.HandleFunc("/watchlist/{symbol}", handler.GetWatchlistEntry).Methods("GET")
	api.HandleFunc("/watchlist/{symbol}", handler.SetWatchlistEnabled).Methods("PUT")
	api.HandleFunc("/watchlist/{symbol}", handler.RemoveFromWatchlist).Methods("DELETE")

	// Portfolio and history
	api.HandleFunc("/orders", handler.GetOrders).Methods("GET")
	api.HandleFunc("/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/positions/{symbol}", handler.GetPosition).Methods("GET")
	api.HandleFunc("/fills", handler.GetFills).Methods("GET")
	api.HandleFunc("/bars/{symbol}/latest", handler.GetLatestBar).Methods("GET")
	api.HandleFunc("/account", handler.GetAccount).Methods("GET")
	api.HandleFunc("/trades", handler.GetTrades).Methods("GET")
	api.HandleFunc("/report", handler.GetReport).Methods("GET")

	return r
}
