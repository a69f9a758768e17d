package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/innovatingrealm/openai-imagegen/internal/imaging"
	"github.com/innovatingrealm/openai-imagegen/internal/infra"
	"github.com/innovatingrealm/openai-imagegen/internal/openai"
	"github.com/innovatingrealm/openai-imagegen/internal/storage"
)

// Client is the narrow provider contract the service depends on. Tests
// substitute a scripted double; production wires *openai.Client.
type Client interface {
	GenerateImages(ctx context.Context, p openai.GenerationPayload) ([]openai.ImageDatum, error)
	EditImage(ctx context.Context, p openai.EditPayload) ([]openai.ImageDatum, error)
	CreateVariations(ctx context.Context, p openai.VariationPayload) ([]openai.ImageDatum, error)
	ListModels(ctx context.Context) error
}

// Fetcher retrieves remote reference images.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Service adapts validated requests into provider calls and unifies the
// heterogeneous response shapes into Outcomes. Every failure below this layer
// is converted into a success=false Outcome; no error escapes to the HTTP
// surface.
type Service struct {
	client  Client
	fetcher Fetcher
	store   *storage.FileStore
	logger  infra.Logger
}

// NewService wires a Service from its collaborators.
func NewService(client Client, fetcher Fetcher, store *storage.FileStore, logger infra.Logger) *Service {
	return &Service{client: client, fetcher: fetcher, store: store, logger: logger}
}

// Generate submits a plain text-to-image request.
func (s *Service) Generate(ctx context.Context, req GenerationRequest) Outcome {
	data, err := s.client.GenerateImages(ctx, openai.GenerationPayload{
		Model:   string(req.Model),
		Prompt:  req.Prompt,
		Size:    string(req.Size),
		Quality: string(req.Quality),
		N:       req.N,
	})
	if err != nil {
		return failure("Failed to generate image", err)
	}

	images, err := s.collectResults(ctx, data, "generated", req.Format, req.SaveToDisk)
	if err != nil {
		return failure("Failed to generate image", err)
	}

	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Successfully generated %d image(s)", len(images)),
		Images:  images,
		RequestParams: map[string]any{
			"model":   req.Model,
			"prompt":  req.Prompt,
			"size":    req.Size,
			"quality": req.Quality,
			"n":       req.N,
		},
	}
}

// GenerateWithReferences runs the reference pipeline: fetch each source,
// flatten it to an opaque PNG, stage it as a call-unique temp file, then
// submit all references to the edit endpoint with an enhanced prompt. A
// failure on any single reference aborts the whole call. The edit endpoint
// does not take a quality parameter, so the requested quality is recorded as
// ignored rather than forwarded.
func (s *Service) GenerateWithReferences(ctx context.Context, req ReferenceRequest) Outcome {
	if len(req.Sources) == 0 {
		return failure("Failed to generate image with references", fmt.Errorf("no reference images provided"))
	}

	paths := make([]string, 0, len(req.Sources))
	urls := make([]string, 0, len(req.Sources))
	for i, src := range req.Sources {
		raw := src.Data
		if len(raw) == 0 {
			fetched, err := s.fetcher.Fetch(ctx, src.URL)
			if err != nil {
				return failure(fmt.Sprintf("Failed to download reference image %d", i+1), err)
			}
			raw = fetched
		}
		normalized, err := imaging.Normalize(raw)
		if err != nil {
			return failure(fmt.Sprintf("Failed to process reference image %d", i+1), err)
		}
		path, cleanup, err := s.store.WriteTemp(normalized)
		if err != nil {
			return failure("Failed to stage reference image", err)
		}
		defer cleanup()
		paths = append(paths, path)
		if src.URL != "" {
			urls = append(urls, src.URL)
		}
	}

	enhanced := EnhancePrompt(req.Prompt, len(req.Sources))
	data, err := s.client.EditImage(ctx, openai.EditPayload{
		Model:      string(req.Model),
		Prompt:     enhanced,
		Size:       string(req.Size),
		N:          req.N,
		ImagePaths: paths,
	})
	if err != nil {
		return failure("Failed to generate image with references", err)
	}

	images, err := s.collectResults(ctx, data, "reference", req.Format, req.SaveToDisk)
	if err != nil {
		return failure("Failed to generate image with references", err)
	}

	params := map[string]any{
		"model":           req.Model,
		"original_prompt": req.Prompt,
		"enhanced_prompt": enhanced,
		"size":            req.Size,
		"n":               req.N,
		"reference_count": len(req.Sources),
		"note":            "Quality parameter not supported by edit endpoint",
	}
	if len(urls) > 0 {
		params["reference_urls"] = urls
	}

	return Outcome{
		Success:       true,
		Message:       fmt.Sprintf("Successfully generated %d image(s) using %d reference(s)", len(images), len(req.Sources)),
		Images:        images,
		RequestParams: params,
	}
}

// EditImage submits an uploaded image, with an optional inpainting mask, to
// the edit endpoint. The image is normalized first; the mask is passed
// through untouched because its alpha channel marks the editable region.
func (s *Service) EditImage(ctx context.Context, req GenerationRequest, image, mask []byte) Outcome {
	normalized, err := imaging.Normalize(image)
	if err != nil {
		return failure("Failed to edit image", err)
	}
	path, cleanup, err := s.store.WriteTemp(normalized)
	if err != nil {
		return failure("Failed to stage image", err)
	}
	defer cleanup()

	payload := openai.EditPayload{
		Model:      string(req.Model),
		Prompt:     req.Prompt,
		Size:       string(req.Size),
		N:          req.N,
		ImagePaths: []string{path},
	}
	if len(mask) > 0 {
		maskPath, maskCleanup, err := s.store.WriteTemp(mask)
		if err != nil {
			return failure("Failed to stage mask", err)
		}
		defer maskCleanup()
		payload.MaskPath = maskPath
	}

	data, err := s.client.EditImage(ctx, payload)
	if err != nil {
		return failure("Failed to edit image", err)
	}

	images, err := s.collectResults(ctx, data, "edited", req.Format, req.SaveToDisk)
	if err != nil {
		return failure("Failed to edit image", err)
	}

	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Successfully edited image, %d result(s)", len(images)),
		Images:  images,
		RequestParams: map[string]any{
			"model":  req.Model,
			"prompt": req.Prompt,
			"size":   req.Size,
			"n":      req.N,
		},
	}
}

// CreateVariations submits an uploaded image to the variations endpoint.
// Only dall-e-2 supports variations; callers validate the model before
// reaching this point.
func (s *Service) CreateVariations(ctx context.Context, req GenerationRequest, image []byte) Outcome {
	normalized, err := imaging.Normalize(image)
	if err != nil {
		return failure("Failed to create variations", err)
	}
	path, cleanup, err := s.store.WriteTemp(normalized)
	if err != nil {
		return failure("Failed to stage image", err)
	}
	defer cleanup()

	data, err := s.client.CreateVariations(ctx, openai.VariationPayload{
		Model:     string(req.Model),
		Size:      string(req.Size),
		N:         req.N,
		ImagePath: path,
	})
	if err != nil {
		return failure("Failed to create variations", err)
	}

	images, err := s.collectResults(ctx, data, "variation", req.Format, req.SaveToDisk)
	if err != nil {
		return failure("Failed to create variations", err)
	}

	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Successfully created %d variation(s)", len(images)),
		Images:  images,
		RequestParams: map[string]any{
			"model": req.Model,
			"size":  req.Size,
			"n":     req.N,
		},
	}
}

// CheckAPIStatus reports whether the upstream provider is reachable.
func (s *Service) CheckAPIStatus(ctx context.Context) bool {
	return s.client.ListModels(ctx) == nil
}

// collectResults resolves each response item once, right after the provider
// call: inline base64 is used directly; a remote URL is fetched and
// re-encoded; an item carrying neither is dropped from the batch. The drop is
// a known lossy edge case kept for compatibility with provider behavior.
func (s *Service) collectResults(ctx context.Context, data []openai.ImageDatum, prefix string, format Format, save bool) ([]ImageResult, error) {
	images := make([]ImageResult, 0, len(data))
	for idx, datum := range data {
		var encoded string
		switch {
		case datum.B64JSON != "":
			encoded = datum.B64JSON
		case datum.URL != "":
			raw, err := s.fetcher.Fetch(ctx, datum.URL)
			if err != nil {
				return nil, err
			}
			encoded = base64.StdEncoding.EncodeToString(raw)
		default:
			s.logger.Warn().Int("index", idx).Msg("provider item carried neither url nor inline data, dropping")
			continue
		}

		result := ImageResult{
			Index:         idx,
			B64JSON:       encoded,
			RevisedPrompt: datum.RevisedPrompt,
		}

		if save {
			raw, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("decode image %d: %w", idx, err)
			}
			filename, path, err := s.store.SaveImage(ctx, prefix, idx, string(format), raw)
			if err != nil {
				return nil, err
			}
			result.Filename = filename
			result.FilePath = path
		}

		images = append(images, result)
	}
	return images, nil
}
