package openai

// ImageDatum is one item of an images response. The provider returns either a
// remote URL or inline base64 data, never reliably one or the other; callers
// must resolve the variant once, immediately after the call.
type ImageDatum struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// GenerationPayload is the wire shape for the generations endpoint.
type GenerationPayload struct {
	Model   string
	Prompt  string
	Size    string
	Quality string
	N       int
}

// EditPayload is the wire shape for the edits endpoint. The endpoint takes
// one or more reference images as multipart files and does not accept a
// quality field. MaskPath is optional and used for inpainting.
type EditPayload struct {
	Model      string
	Prompt     string
	Size       string
	N          int
	ImagePaths []string
	MaskPath   string
}

// VariationPayload is the wire shape for the variations endpoint.
type VariationPayload struct {
	Model     string
	Size      string
	N         int
	ImagePath string
}

type imagesResponse struct {
	Created int64        `json:"created"`
	Data    []ImageDatum `json:"data"`
	Error   *apiError    `json:"error"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
