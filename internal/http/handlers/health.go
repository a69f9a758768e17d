package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	Version      string `json:"version"`
	OpenAIStatus string `json:"openai_status"`
}

// Health reports service liveness plus upstream-provider reachability. The
// route is exempt from rate limiting so monitors always get an answer.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	upstream := "unhealthy"
	if a.Service.CheckAPIStatus(r.Context()) {
		upstream = "healthy"
	}
	a.json(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().Format(time.RFC3339),
		Version:      Version,
		OpenAIStatus: upstream,
	})
}
