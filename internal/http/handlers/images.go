package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/innovatingrealm/openai-imagegen/internal/imagegen"
	ziparchive "github.com/innovatingrealm/openai-imagegen/pkg/zip"
)

const (
	defaultGenerateModel  = "dall-e-3"
	defaultReferenceModel = "gpt-image-1"
	defaultReferenceSize  = "1536x1024"
	defaultReferenceQual  = "high"
	defaultEditModel      = "dall-e-2"
	defaultFormat         = "png"
)

type generateJSONRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
	SaveToDisk     *bool  `json:"save_to_disk"`
}

type referenceJSONRequest struct {
	Prompt         string   `json:"prompt"`
	ImageURLs      []string `json:"image_urls"`
	Model          string   `json:"model"`
	Size           string   `json:"size"`
	Quality        string   `json:"quality"`
	N              int      `json:"n"`
	ResponseFormat string   `json:"response_format"`
	SaveToDisk     *bool    `json:"save_to_disk"`
}

// Generate handles POST /api/v1/images/generate.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	req, err := a.buildGenerationRequest(body, defaultGenerateModel, a.Config.DefaultImageSize, a.Config.DefaultImageQuality)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	a.outcome(w, a.Service.Generate(r.Context(), req))
}

// GenerateWithReference handles POST /api/v1/images/generate-with-reference.
// It accepts either a JSON body carrying reference URLs or a multipart upload
// with a reference_image file.
func (a *App) GenerateWithReference(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		a.referenceFromJSON(w, r, "")
		return
	}
	a.referenceFromUpload(w, r, "reference_image", false)
}

// GenerateWithMultipleReferences handles
// POST /api/v1/images/generate-with-multiple-references (multipart, up to 5
// reference_images files).
func (a *App) GenerateWithMultipleReferences(w http.ResponseWriter, r *http.Request) {
	a.referenceFromUpload(w, r, "reference_images", true)
}

// GPTImageWithURL handles POST /api/v1/images/gpt-image-generate-with-url.
// The model is always gpt-image-1.
func (a *App) GPTImageWithURL(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(w, r); err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid form payload", err)
		return
	}
	url := strings.TrimSpace(r.FormValue("image_url"))
	if url == "" {
		a.fail(w, http.StatusBadRequest, "Invalid request", errors.New("image_url is required"))
		return
	}
	a.dispatchReference(w, r, []imagegen.ImageSource{{URL: url}}, formFields(r), imagegen.ModelGPTImage1)
}

// GPTImageWithMultipleURLs handles
// POST /api/v1/images/gpt-image-generate-with-multiple-urls.
func (a *App) GPTImageWithMultipleURLs(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(w, r); err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid form payload", err)
		return
	}
	sources := make([]imagegen.ImageSource, 0, len(r.Form["image_urls"]))
	for _, raw := range r.Form["image_urls"] {
		for _, url := range strings.Split(raw, ",") {
			if url = strings.TrimSpace(url); url != "" {
				sources = append(sources, imagegen.ImageSource{URL: url})
			}
		}
	}
	a.dispatchReference(w, r, sources, formFields(r), imagegen.ModelGPTImage1)
}

// GPTImageJSON handles POST /api/v1/images/gpt-image-generate-json, a
// JSON-only variant pinned to gpt-image-1.
func (a *App) GPTImageJSON(w http.ResponseWriter, r *http.Request) {
	a.referenceFromJSON(w, r, imagegen.ModelGPTImage1)
}

// Edit handles POST /api/v1/images/edit: an uploaded image, an optional
// inpainting mask, and an edit prompt.
func (a *App) Edit(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(w, r); err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid form payload", err)
		return
	}
	image, err := a.requireUpload(r, "image")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	var mask []byte
	if _, ok := fileHeader(r, "mask"); ok {
		mask, err = a.requireUpload(r, "mask")
		if err != nil {
			a.fail(w, http.StatusBadRequest, "Invalid mask upload", err)
			return
		}
	}

	fields := formFields(r)
	req, err := a.buildGenerationRequest(fields.asJSON(), defaultEditModel, a.Config.DefaultImageSize, a.Config.DefaultImageQuality)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	a.outcome(w, a.Service.EditImage(r.Context(), req, image, mask))
}

// Variations handles POST /api/v1/images/variations. Only dall-e-2 supports
// variations; no prompt is taken.
func (a *App) Variations(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(w, r); err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid form payload", err)
		return
	}
	image, err := a.requireUpload(r, "image")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}

	fields := formFields(r)
	model := fields.model
	if model == "" {
		model = defaultEditModel
	}
	size := fields.size
	if size == "" {
		size = a.Config.DefaultImageSize
	}
	format, err := a.resolveFormat(fields.responseFormat)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	req, err := imagegen.NewVariationRequest(model, size, fields.n, format, fields.saveToDisk)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	a.outcome(w, a.Service.CreateVariations(r.Context(), req, image))
}

// Archive handles GET /api/v1/images/archive, returning every stored image
// as a single zip download.
func (a *App) Archive(w http.ResponseWriter, r *http.Request) {
	names, err := a.Store.List()
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "Failed to list stored images", err)
		return
	}
	entries := make([]ziparchive.Entry, 0, len(names))
	for _, name := range names {
		data, err := a.Store.Read(name)
		if err != nil {
			a.fail(w, http.StatusInternalServerError, "Failed to read stored image", err)
			return
		}
		entries = append(entries, ziparchive.Entry{Name: name, Data: data})
	}
	archive, err := ziparchive.Archive(entries)
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "Failed to build archive", err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename=generated-images.zip`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// referenceFromJSON serves the JSON reference endpoints. forcedModel, when
// non-empty, overrides whatever the payload asks for.
func (a *App) referenceFromJSON(w http.ResponseWriter, r *http.Request, forcedModel imagegen.Model) {
	var body referenceJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	sources := make([]imagegen.ImageSource, 0, len(body.ImageURLs))
	for _, url := range body.ImageURLs {
		if url = strings.TrimSpace(url); url != "" {
			sources = append(sources, imagegen.ImageSource{URL: url})
		}
	}
	fields := refFields{
		prompt:         body.Prompt,
		model:          body.Model,
		size:           body.Size,
		quality:        body.Quality,
		n:              body.N,
		responseFormat: body.ResponseFormat,
		saveToDisk:     body.SaveToDisk == nil || *body.SaveToDisk,
	}
	a.dispatchReference(w, r, sources, fields, forcedModel)
}

// referenceFromUpload serves the multipart reference endpoints.
func (a *App) referenceFromUpload(w http.ResponseWriter, r *http.Request, field string, multiple bool) {
	if err := a.parseForm(w, r); err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid form payload", err)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File[field]
	}
	if !multiple && len(headers) > 1 {
		headers = headers[:1]
	}
	if len(headers) == 0 {
		a.fail(w, http.StatusBadRequest, "Invalid upload", fmt.Errorf("%s file is required", field))
		return
	}

	sources := make([]imagegen.ImageSource, 0, len(headers))
	for _, fh := range headers {
		data, err := readImageUpload(fh)
		if err != nil {
			a.fail(w, http.StatusBadRequest, "Invalid upload", err)
			return
		}
		sources = append(sources, imagegen.ImageSource{Data: data, Name: fh.Filename})
	}
	a.dispatchReference(w, r, sources, formFields(r), "")
}

// dispatchReference applies reference defaults, validates, and invokes the
// reference pipeline.
func (a *App) dispatchReference(w http.ResponseWriter, r *http.Request, sources []imagegen.ImageSource, fields refFields, forcedModel imagegen.Model) {
	model := fields.model
	if forcedModel != "" {
		model = string(forcedModel)
	}
	if model == "" {
		model = defaultReferenceModel
	}
	size := fields.size
	if size == "" {
		size = defaultReferenceSize
	}
	quality := fields.quality
	if quality == "" {
		quality = defaultReferenceQual
	}
	format, err := a.resolveFormat(fields.responseFormat)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	n := fields.n
	if n == 0 {
		n = 1
	}

	req, err := imagegen.NewReferenceRequest(fields.prompt, model, size, quality, n, format, fields.saveToDisk, sources)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	a.outcome(w, a.Service.GenerateWithReferences(r.Context(), req))
}

// buildGenerationRequest applies defaults and validates a plain generation
// request.
func (a *App) buildGenerationRequest(body generateJSONRequest, defModel, defSize, defQuality string) (imagegen.GenerationRequest, error) {
	model := body.Model
	if model == "" {
		model = defModel
	}
	size := body.Size
	if size == "" {
		size = defSize
	}
	quality := body.Quality
	if quality == "" {
		quality = defQuality
	}
	n := body.N
	if n == 0 {
		n = 1
	}
	format, err := a.resolveFormat(body.ResponseFormat)
	if err != nil {
		return imagegen.GenerationRequest{}, err
	}
	save := body.SaveToDisk == nil || *body.SaveToDisk
	return imagegen.NewGenerationRequest(body.Prompt, model, size, quality, n, format, save)
}

// resolveFormat defaults the output format and enforces the configured
// allowlist.
func (a *App) resolveFormat(raw string) (string, error) {
	if raw == "" {
		raw = defaultFormat
	}
	format, err := imagegen.ParseFormat(raw)
	if err != nil {
		return "", err
	}
	for _, allowed := range a.Config.AllowedImageFormats {
		if allowed == "jpg" {
			allowed = "jpeg"
		}
		if string(format) == allowed {
			return string(format), nil
		}
	}
	return "", fmt.Errorf("output format %q is not allowed", format)
}

// refFields carries the shared scalar fields of the reference and upload
// endpoints, regardless of how the request arrived.
type refFields struct {
	prompt         string
	model          string
	size           string
	quality        string
	n              int
	responseFormat string
	saveToDisk     bool
}

func (f refFields) asJSON() generateJSONRequest {
	save := f.saveToDisk
	return generateJSONRequest{
		Prompt:         f.prompt,
		Model:          f.model,
		Size:           f.size,
		Quality:        f.quality,
		N:              f.n,
		ResponseFormat: f.responseFormat,
		SaveToDisk:     &save,
	}
}

func formFields(r *http.Request) refFields {
	n := 1
	if raw := r.FormValue("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}
	save := true
	if raw := r.FormValue("save_to_disk"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			save = v
		}
	}
	return refFields{
		prompt:         r.FormValue("prompt"),
		model:          r.FormValue("model"),
		size:           r.FormValue("size"),
		quality:        r.FormValue("quality"),
		n:              n,
		responseFormat: r.FormValue("response_format"),
		saveToDisk:     save,
	}
}

// parseForm parses urlencoded or multipart bodies, bounded by the configured
// upload limit.
func (a *App) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, a.Config.MaxFileSize)
	if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(a.Config.MaxFileSize)
	}
	return r.ParseForm()
}

func fileHeader(r *http.Request, field string) (*multipart.FileHeader, bool) {
	if r.MultipartForm == nil {
		return nil, false
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, false
	}
	return headers[0], true
}

func (a *App) requireUpload(r *http.Request, field string) ([]byte, error) {
	fh, ok := fileHeader(r, field)
	if !ok {
		return nil, fmt.Errorf("%s file is required", field)
	}
	return readImageUpload(fh)
}

func readImageUpload(fh *multipart.FileHeader) ([]byte, error) {
	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("file %s must be an image", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
