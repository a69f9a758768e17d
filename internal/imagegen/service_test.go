package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/innovatingrealm/openai-imagegen/internal/openai"
	"github.com/innovatingrealm/openai-imagegen/internal/storage"
)

type stubClient struct {
	generateData []openai.ImageDatum
	generateErr  error
	editData     []openai.ImageDatum
	editErr      error
	variationsD  []openai.ImageDatum
	modelsErr    error

	lastGenerate openai.GenerationPayload
	lastEdit     openai.EditPayload
	editCalls    int
}

func (c *stubClient) GenerateImages(ctx context.Context, p openai.GenerationPayload) ([]openai.ImageDatum, error) {
	c.lastGenerate = p
	return c.generateData, c.generateErr
}

func (c *stubClient) EditImage(ctx context.Context, p openai.EditPayload) ([]openai.ImageDatum, error) {
	c.editCalls++
	c.lastEdit = p
	return c.editData, c.editErr
}

func (c *stubClient) CreateVariations(ctx context.Context, p openai.VariationPayload) ([]openai.ImageDatum, error) {
	return c.variationsD, nil
}

func (c *stubClient) ListModels(ctx context.Context) error {
	return c.modelsErr
}

type stubFetcher struct {
	responses map[string][]byte
	errs      map[string]error
	calls     []string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if data, ok := f.responses[url]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("unexpected fetch: %s", url)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, client Client, fetcher Fetcher) (*Service, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewService(client, fetcher, store, zerolog.Nop()), store
}

func TestGenerateSavesBatchToDisk(t *testing.T) {
	client := &stubClient{generateData: []openai.ImageDatum{
		{B64JSON: base64.StdEncoding.EncodeToString([]byte("one")), RevisedPrompt: "a painted cat"},
		{B64JSON: base64.StdEncoding.EncodeToString([]byte("two"))},
	}}
	svc, _ := newTestService(t, client, &stubFetcher{})

	req, err := NewGenerationRequest("a cat", "dall-e-3", "1024x1024", "standard", 2, "png", true)
	if err != nil {
		t.Fatalf("NewGenerationRequest: %v", err)
	}
	outcome := svc.Generate(context.Background(), req)

	if !outcome.Success {
		t.Fatalf("outcome not successful: %s", outcome.Error)
	}
	if len(outcome.Images) != 2 {
		t.Fatalf("images length = %d, want 2", len(outcome.Images))
	}
	if !strings.HasSuffix(outcome.Images[0].Filename, "_0.png") {
		t.Fatalf("first filename = %s, want suffix _0.png", outcome.Images[0].Filename)
	}
	if !strings.HasSuffix(outcome.Images[1].Filename, "_1.png") {
		t.Fatalf("second filename = %s, want suffix _1.png", outcome.Images[1].Filename)
	}
	if outcome.Images[0].RevisedPrompt != "a painted cat" {
		t.Fatalf("revised prompt not carried: %+v", outcome.Images[0])
	}
	if client.lastGenerate.Quality != "standard" {
		t.Fatalf("quality not forwarded to generations: %+v", client.lastGenerate)
	}
	data, err := os.ReadFile(outcome.Images[0].FilePath)
	if err != nil || string(data) != "one" {
		t.Fatalf("persisted bytes mismatch: %v %q", err, data)
	}
}

func TestGenerateSkipsDiskWhenNotRequested(t *testing.T) {
	client := &stubClient{generateData: []openai.ImageDatum{{B64JSON: "eA=="}}}
	svc, store := newTestService(t, client, &stubFetcher{})

	req, _ := NewGenerationRequest("a cat", "dall-e-3", "1024x1024", "standard", 1, "png", false)
	outcome := svc.Generate(context.Background(), req)

	if !outcome.Success {
		t.Fatalf("outcome not successful: %s", outcome.Error)
	}
	if outcome.Images[0].Filename != "" {
		t.Fatalf("filename set without save flag: %+v", outcome.Images[0])
	}
	names, _ := store.List()
	if len(names) != 0 {
		t.Fatalf("unexpected files on disk: %#v", names)
	}
}

func TestGenerateProviderErrorBecomesFailureOutcome(t *testing.T) {
	client := &stubClient{generateErr: errors.New("content policy violation")}
	svc, _ := newTestService(t, client, &stubFetcher{})

	req, _ := NewGenerationRequest("a cat", "dall-e-3", "1024x1024", "standard", 1, "png", true)
	outcome := svc.Generate(context.Background(), req)

	if outcome.Success {
		t.Fatalf("expected failure outcome")
	}
	if outcome.Error != "content policy violation" {
		t.Fatalf("error text not verbatim: %q", outcome.Error)
	}
	if len(outcome.Images) != 0 {
		t.Fatalf("failure outcome carries images: %+v", outcome.Images)
	}
}

func TestReferencePipelineSubmitsNormalizedTempFiles(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]byte{
		"https://example.com/a.png": pngBytes(t),
		"https://example.com/b.png": pngBytes(t),
	}}
	client := &stubClient{editData: []openai.ImageDatum{{B64JSON: "aW1n"}}}
	svc, store := newTestService(t, client, fetcher)

	req, err := NewReferenceRequest("a castle", "gpt-image-1", "1536x1024", "high", 1, "png", false, []ImageSource{
		{URL: "https://example.com/a.png"},
		{URL: "https://example.com/b.png"},
	})
	if err != nil {
		t.Fatalf("NewReferenceRequest: %v", err)
	}
	outcome := svc.GenerateWithReferences(context.Background(), req)

	if !outcome.Success {
		t.Fatalf("outcome not successful: %s", outcome.Error)
	}
	if len(client.lastEdit.ImagePaths) != 2 {
		t.Fatalf("edit image paths = %d, want 2", len(client.lastEdit.ImagePaths))
	}
	if !strings.Contains(client.lastEdit.Prompt, "2 reference images") {
		t.Fatalf("enhanced prompt missing reference count: %q", client.lastEdit.Prompt)
	}
	if !strings.Contains(client.lastEdit.Prompt, "a castle") {
		t.Fatalf("enhanced prompt missing original prompt: %q", client.lastEdit.Prompt)
	}
	// Temp files staged for submission must be gone once the call returns.
	for _, p := range client.lastEdit.ImagePaths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("temp file %s not cleaned up", p)
		}
	}
	if params := outcome.RequestParams; params["note"] != "Quality parameter not supported by edit endpoint" {
		t.Fatalf("quality-ignored note missing: %+v", params)
	}
	names, _ := store.List()
	if len(names) != 0 {
		t.Fatalf("unexpected files left in store: %#v", names)
	}
}

func TestReferencePipelineSecondFetchFailureAbortsWholeCall(t *testing.T) {
	fetcher := &stubFetcher{
		responses: map[string][]byte{"https://example.com/a.png": pngBytes(t)},
		errs:      map[string]error{"https://example.com/b.png": errors.New("status 404")},
	}
	client := &stubClient{editData: []openai.ImageDatum{{B64JSON: "aW1n"}}}
	svc, _ := newTestService(t, client, fetcher)

	req, _ := NewReferenceRequest("a castle", "gpt-image-1", "1536x1024", "high", 1, "png", false, []ImageSource{
		{URL: "https://example.com/a.png"},
		{URL: "https://example.com/b.png"},
	})
	outcome := svc.GenerateWithReferences(context.Background(), req)

	if outcome.Success {
		t.Fatalf("expected failure outcome")
	}
	if len(outcome.Images) != 0 {
		t.Fatalf("partial-success images returned: %+v", outcome.Images)
	}
	if client.editCalls != 0 {
		t.Fatalf("edit endpoint called despite fetch failure")
	}
}

func TestReferencePipelineRejectsInvalidImageBytes(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]byte{
		"https://example.com/a.png": []byte("not an image"),
	}}
	client := &stubClient{}
	svc, _ := newTestService(t, client, fetcher)

	req, _ := NewReferenceRequest("x", "gpt-image-1", "1536x1024", "high", 1, "png", false, []ImageSource{
		{URL: "https://example.com/a.png"},
	})
	outcome := svc.GenerateWithReferences(context.Background(), req)

	if outcome.Success {
		t.Fatalf("expected failure outcome")
	}
	if client.editCalls != 0 {
		t.Fatalf("edit endpoint called with invalid reference")
	}
}

func TestCollectResultsResolvesURLItems(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]byte{
		"https://cdn.example.com/out.png": []byte("result-bytes"),
	}}
	client := &stubClient{editData: []openai.ImageDatum{{URL: "https://cdn.example.com/out.png"}}}
	svc, _ := newTestService(t, client, fetcher)

	req, _ := NewReferenceRequest("x", "gpt-image-1", "1536x1024", "high", 1, "png", false, []ImageSource{
		{Data: pngBytes(t), Name: "upload.png"},
	})
	outcome := svc.GenerateWithReferences(context.Background(), req)

	if !outcome.Success {
		t.Fatalf("outcome not successful: %s", outcome.Error)
	}
	want := base64.StdEncoding.EncodeToString([]byte("result-bytes"))
	if outcome.Images[0].B64JSON != want {
		t.Fatalf("url item not re-encoded to base64")
	}
}

func TestCollectResultsDropsItemsWithNeitherShape(t *testing.T) {
	client := &stubClient{generateData: []openai.ImageDatum{
		{B64JSON: "eA=="},
		{},
		{B64JSON: "eQ=="},
	}}
	svc, _ := newTestService(t, client, &stubFetcher{})

	req, _ := NewGenerationRequest("a cat", "dall-e-3", "1024x1024", "standard", 3, "png", false)
	outcome := svc.Generate(context.Background(), req)

	if !outcome.Success {
		t.Fatalf("outcome not successful: %s", outcome.Error)
	}
	if len(outcome.Images) != 2 {
		t.Fatalf("images length = %d, want 2 (empty item dropped)", len(outcome.Images))
	}
	if outcome.Images[0].Index != 0 || outcome.Images[1].Index != 2 {
		t.Fatalf("batch positions not preserved: %+v", outcome.Images)
	}
}

func TestEditImagePassesMaskThrough(t *testing.T) {
	client := &stubClient{editData: []openai.ImageDatum{{B64JSON: "eA=="}}}
	svc, _ := newTestService(t, client, &stubFetcher{})

	req, _ := NewGenerationRequest("remove the hat", "dall-e-2", "1024x1024", "standard", 1, "png", false)
	outcome := svc.EditImage(context.Background(), req, pngBytes(t), []byte("mask-bytes"))

	if !outcome.Success {
		t.Fatalf("outcome not successful: %s", outcome.Error)
	}
	if client.lastEdit.MaskPath == "" {
		t.Fatalf("mask not staged for submission")
	}
	if _, err := os.Stat(client.lastEdit.MaskPath); !os.IsNotExist(err) {
		t.Fatalf("mask temp file not cleaned up")
	}
}

func TestCreateVariations(t *testing.T) {
	client := &stubClient{variationsD: []openai.ImageDatum{{B64JSON: "eA=="}, {B64JSON: "eQ=="}}}
	svc, _ := newTestService(t, client, &stubFetcher{})

	req, _ := NewVariationRequest("dall-e-2", "1024x1024", 2, "png", false)
	outcome := svc.CreateVariations(context.Background(), req, pngBytes(t))

	if !outcome.Success {
		t.Fatalf("outcome not successful: %s", outcome.Error)
	}
	if len(outcome.Images) != 2 {
		t.Fatalf("images length = %d, want 2", len(outcome.Images))
	}
}

func TestCheckAPIStatus(t *testing.T) {
	svc, _ := newTestService(t, &stubClient{}, &stubFetcher{})
	if !svc.CheckAPIStatus(context.Background()) {
		t.Fatalf("expected healthy status")
	}

	svc, _ = newTestService(t, &stubClient{modelsErr: errors.New("unreachable")}, &stubFetcher{})
	if svc.CheckAPIStatus(context.Background()) {
		t.Fatalf("expected unhealthy status")
	}
}
