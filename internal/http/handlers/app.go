package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/innovatingrealm/openai-imagegen/internal/imagegen"
	"github.com/innovatingrealm/openai-imagegen/internal/infra"
	"github.com/innovatingrealm/openai-imagegen/internal/storage"
)

// Version is reported by the root and health endpoints.
const Version = "1.0.0"

// ImageService is the application-facing contract of the generation service.
type ImageService interface {
	Generate(ctx context.Context, req imagegen.GenerationRequest) imagegen.Outcome
	GenerateWithReferences(ctx context.Context, req imagegen.ReferenceRequest) imagegen.Outcome
	EditImage(ctx context.Context, req imagegen.GenerationRequest, image, mask []byte) imagegen.Outcome
	CreateVariations(ctx context.Context, req imagegen.GenerationRequest, image []byte) imagegen.Outcome
	CheckAPIStatus(ctx context.Context) bool
}

// App is the handler container; it holds the collaborators every route needs.
type App struct {
	Service ImageService
	Store   *storage.FileStore
	Config  *infra.Config
	Logger  infra.Logger
}

// NewApp wires an App.
func NewApp(service ImageService, store *storage.FileStore, cfg *infra.Config, logger infra.Logger) *App {
	return &App{Service: service, Store: store, Config: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail writes a validation failure in the same envelope the service uses for
// its outcomes.
func (a *App) fail(w http.ResponseWriter, code int, message string, err error) {
	a.json(w, code, imagegen.Outcome{Success: false, Message: message, Error: err.Error()})
}

// outcome maps a service outcome onto the wire: failures become 400s.
func (a *App) outcome(w http.ResponseWriter, out imagegen.Outcome) {
	code := http.StatusOK
	if !out.Success {
		code = http.StatusBadRequest
	}
	a.json(w, code, out)
}

// Root serves a small service descriptor.
func (a *App) Root(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"message": "OpenAI Image Generation API",
		"version": Version,
		"health":  "/health",
		"status":  "running",
	})
}
