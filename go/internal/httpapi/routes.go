package httpapi

import "net/http"

// RegisterRoutes attaches the session API to mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("POST /v1/sessions/{id}/picks", h.HandleSubmitPick)
	mux.HandleFunc("POST /v1/sessions/{id}/sync-error", h.HandleSyncError)
	mux.HandleFunc("POST /v1/sessions/{id}/sync-recovered", h.HandleSyncRecovered)
	mux.HandleFunc("GET /v1/sessions/{id}/recommendations", h.HandleRecommendations)
	mux.HandleFunc("GET /health", h.HandleHealth)
}
