package imagegen

import (
	"fmt"
	"strings"
)

// Model enumerates the supported provider models.
type Model string

const (
	ModelDallE2    Model = "dall-e-2"
	ModelDallE3    Model = "dall-e-3"
	ModelGPTImage1 Model = "gpt-image-1"
)

// Size enumerates the supported output dimensions.
type Size string

const (
	SizeSquare    Size = "1024x1024"
	SizeLandscape Size = "1536x1024"
	SizePortrait  Size = "1024x1536"
)

// Quality enumerates the supported rendering qualities. "high" is used by
// gpt-image-1, "hd" by dall-e-3.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
	QualityHD       Quality = "hd"
)

// Format enumerates the supported output file formats.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

const (
	// MaxGenerationCount bounds plain generation batches.
	MaxGenerationCount = 10
	// MaxReferenceCount bounds reference-guided batches; providers throttle
	// multi-image editing harder than plain generation.
	MaxReferenceCount = 5
	// MaxReferenceImages bounds the number of reference sources per call.
	MaxReferenceImages = 5
)

// ParseModel validates a model name.
func ParseModel(s string) (Model, error) {
	switch m := Model(strings.TrimSpace(s)); m {
	case ModelDallE2, ModelDallE3, ModelGPTImage1:
		return m, nil
	default:
		return "", fmt.Errorf("invalid model %q", s)
	}
}

// ParseSize validates an output size.
func ParseSize(s string) (Size, error) {
	switch v := Size(strings.TrimSpace(s)); v {
	case SizeSquare, SizeLandscape, SizePortrait:
		return v, nil
	default:
		return "", fmt.Errorf("invalid size %q", s)
	}
}

// ParseQuality validates a quality level.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.TrimSpace(s)); q {
	case QualityLow, QualityStandard, QualityHigh, QualityHD:
		return q, nil
	default:
		return "", fmt.Errorf("invalid quality %q", s)
	}
}

// ParseFormat validates an output format. "jpg" is accepted as an alias for
// "jpeg".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatJPEG, FormatWebP:
		return f, nil
	case "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("invalid output format %q", s)
	}
}

// GenerationRequest is a validated text-to-image request. Construct it with
// NewGenerationRequest; instances are never mutated after construction.
type GenerationRequest struct {
	Prompt     string
	Model      Model
	Size       Size
	Quality    Quality
	N          int
	Format     Format
	SaveToDisk bool
}

// NewGenerationRequest validates the raw fields of a generation request.
func NewGenerationRequest(prompt, model, size, quality string, n int, format string, save bool) (GenerationRequest, error) {
	var req GenerationRequest
	if strings.TrimSpace(prompt) == "" {
		return req, fmt.Errorf("prompt is required")
	}
	m, err := ParseModel(model)
	if err != nil {
		return req, err
	}
	sz, err := ParseSize(size)
	if err != nil {
		return req, err
	}
	q, err := ParseQuality(quality)
	if err != nil {
		return req, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return req, err
	}
	if n < 1 || n > MaxGenerationCount {
		return req, fmt.Errorf("n must be between 1 and %d", MaxGenerationCount)
	}
	return GenerationRequest{
		Prompt:     strings.TrimSpace(prompt),
		Model:      m,
		Size:       sz,
		Quality:    q,
		N:          n,
		Format:     f,
		SaveToDisk: save,
	}, nil
}

// NewVariationRequest validates a variation request. Variations take no
// prompt and are only supported by dall-e-2.
func NewVariationRequest(model, size string, n int, format string, save bool) (GenerationRequest, error) {
	var req GenerationRequest
	m, err := ParseModel(model)
	if err != nil {
		return req, err
	}
	if m != ModelDallE2 {
		return req, fmt.Errorf("variations are only supported with the %s model", ModelDallE2)
	}
	sz, err := ParseSize(size)
	if err != nil {
		return req, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return req, err
	}
	if n < 1 || n > MaxGenerationCount {
		return req, fmt.Errorf("n must be between 1 and %d", MaxGenerationCount)
	}
	return GenerationRequest{
		Model:      m,
		Size:       sz,
		Quality:    QualityStandard,
		N:          n,
		Format:     f,
		SaveToDisk: save,
	}, nil
}

// ImageSource is one reference image, supplied either as a remote URL or as
// uploaded bytes.
type ImageSource struct {
	URL  string
	Data []byte
	Name string
}

// ReferenceRequest is a validated reference-guided generation request. It
// carries the plain generation fields plus an ordered sequence of reference
// sources.
type ReferenceRequest struct {
	GenerationRequest
	Sources []ImageSource
}

// NewReferenceRequest validates a reference-guided request. The source count
// is checked here, before any network activity happens.
func NewReferenceRequest(prompt, model, size, quality string, n int, format string, save bool, sources []ImageSource) (ReferenceRequest, error) {
	var req ReferenceRequest
	base, err := NewGenerationRequest(prompt, model, size, quality, n, format, save)
	if err != nil {
		return req, err
	}
	if base.N > MaxReferenceCount {
		return req, fmt.Errorf("n must be between 1 and %d for reference generation", MaxReferenceCount)
	}
	if len(sources) == 0 {
		return req, fmt.Errorf("at least one reference image is required")
	}
	if len(sources) > MaxReferenceImages {
		return req, fmt.Errorf("maximum %d reference images allowed", MaxReferenceImages)
	}
	for i, src := range sources {
		if strings.TrimSpace(src.URL) == "" && len(src.Data) == 0 {
			return req, fmt.Errorf("reference image %d is empty", i+1)
		}
	}
	return ReferenceRequest{GenerationRequest: base, Sources: sources}, nil
}

// ImageResult is one generated image of an output batch.
type ImageResult struct {
	Index         int    `json:"index"`
	B64JSON       string `json:"b64_json"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Filename      string `json:"filename,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
}

// Outcome is the uniform result value returned to the HTTP surface. It is
// never partial: either the whole call succeeded, or Success is false and
// Error holds the reason.
type Outcome struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Images        []ImageResult  `json:"images,omitempty"`
	RequestParams map[string]any `json:"request_params,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func failure(message string, err error) Outcome {
	return Outcome{
		Success: false,
		Message: message,
		Error:   err.Error(),
	}
}
