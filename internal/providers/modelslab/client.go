package modelslab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sketch3d/internal/infra"
)

const (
	OpTextToModel  = "text_to_3d"
	OpUpload       = "base64_to_url"
	OpImageToModel = "image_to_3d"
	OpFetchStatus  = "fetch_result"
)

// Options configures the ModelsLab v6 client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the ModelsLab generation API. It holds only
// immutable configuration and is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	tracer     trace.Tracer
}

// Response is the envelope shared by every ModelsLab endpoint. The link lists
// are kept raw because their element types are not stable across endpoints.
type Response struct {
	Status      string          `json:"status"`
	FetchResult string          `json:"fetch_result"`
	ProxyLinks  json.RawMessage `json:"proxy_links,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
	ETA         json.RawMessage `json:"eta,omitempty"`

	// Raw is the undecoded response body.
	Raw json.RawMessage `json:"-"`
	// HTTPStatus is the HTTP status code the body arrived with.
	HTTPStatus int `json:"-"`
}

// Succeeded reports whether the remote marked the call as successful.
func (r *Response) Succeeded() bool {
	return r != nil && r.Status == "success"
}

// DecodeError reports a response body that is not a JSON object. The remote
// service answered, so this is a contract violation, not a transport failure.
type DecodeError struct {
	Op         string
	HTTPStatus int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("modelslab: decode %s response (http %d): %v", e.Op, e.HTTPStatus, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewClient constructs a client with sane defaults and injected dependencies.
// A zero RequestTimeout leaves the per-call timeout to the transport.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = infra.DefaultModelsLabBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		tracer:     infra.Tracer("sketch3d/modelslab"),
	}
}

// HasCredentials reports whether an API key was configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

type textToModelRequest struct {
	Key               string `json:"key"`
	Prompt            string `json:"prompt"`
	OutputFormat      string `json:"output_format"`
	Resolution        int    `json:"resolution"`
	NumInferenceSteps int    `json:"num_inference_steps"`
	SSSamplingSteps   int    `json:"ss_sampling_steps"`
	SlatSamplingSteps int    `json:"slat_sampling_steps"`
	Seed              int    `json:"seed"`
	Temp              string `json:"temp"`
}

type uploadRequest struct {
	Key          string `json:"key"`
	Base64String string `json:"base64_string"`
}

type imageToModelRequest struct {
	Key          string `json:"key"`
	InitImage    string `json:"init_image"`
	OutputFormat string `json:"output_format"`
	Resolution   int    `json:"resolution"`
	Seed         int    `json:"seed"`
}

type fetchRequest struct {
	Key string `json:"key"`
}

// CreateTextJob submits a text-to-3D job with the fixed GLB parameter set.
func (c *Client) CreateTextJob(ctx context.Context, prompt string) (*Response, error) {
	payload := textToModelRequest{
		Key:               c.apiKey,
		Prompt:            prompt,
		OutputFormat:      "glb",
		Resolution:        512,
		NumInferenceSteps: 30,
		SSSamplingSteps:   50,
		SlatSamplingSteps: 50,
		Seed:              0,
		Temp:              "no",
	}
	return c.post(ctx, OpTextToModel, c.baseURL+"/3d/text_to_3d", payload)
}

// UploadBase64 stores an image payload (raw base64 or a data URL) remotely and
// returns the envelope whose output list carries the durable URL.
func (c *Client) UploadBase64(ctx context.Context, data string) (*Response, error) {
	payload := uploadRequest{Key: c.apiKey, Base64String: data}
	return c.post(ctx, OpUpload, c.baseURL+"/base64_to_url", payload)
}

// CreateImageJob submits an image-to-3D job for an already uploaded image.
func (c *Client) CreateImageJob(ctx context.Context, imageURL string) (*Response, error) {
	payload := imageToModelRequest{
		Key:          c.apiKey,
		InitImage:    imageURL,
		OutputFormat: "glb",
		Resolution:   512,
		Seed:         0,
	}
	return c.post(ctx, OpImageToModel, c.baseURL+"/3d/image_to_3d", payload)
}

// FetchStatus checks a pending job through the fetch_result URL the remote
// handed out at creation time.
func (c *Client) FetchStatus(ctx context.Context, fetchURL string) (*Response, error) {
	parsed, err := url.Parse(strings.TrimSpace(fetchURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("modelslab: invalid fetch url %q", fetchURL)
	}
	return c.post(ctx, OpFetchStatus, parsed.String(), fetchRequest{Key: c.apiKey})
}

func (c *Client) post(ctx context.Context, op, endpoint string, payload any) (resp *Response, err error) {
	ctx, span := c.tracer.Start(ctx, "modelslab."+op, trace.WithAttributes(attribute.String("modelslab.operation", op)))
	defer func() {
		if resp != nil {
			span.SetAttributes(
				attribute.String("modelslab.status", resp.Status),
				attribute.Int("http.status_code", resp.HTTPStatus),
			)
		}
		infra.EndSpan(span, err)
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("modelslab: encode %s request: %w", op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("modelslab: build %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("modelslab: %s request: %w", op, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("modelslab: read %s response: %w", op, err)
	}

	// Error statuses still carry a JSON envelope; decode regardless of code.
	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &DecodeError{Op: op, HTTPStatus: httpResp.StatusCode, Body: raw, Err: err}
	}
	decoded.Raw = json.RawMessage(raw)
	decoded.HTTPStatus = httpResp.StatusCode

	c.logger.Debug().
		Str("operation", op).
		Int("http_status", httpResp.StatusCode).
		Str("status", decoded.Status).
		Msg("modelslab: response received")
	return &decoded, nil
}

// Download fetches a generated model file. It is used by tooling that saves
// results locally; the HTTP proxy only returns URLs.
func (c *Client) Download(ctx context.Context, modelURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(modelURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("modelslab: invalid model url: %s", modelURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("modelslab: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("modelslab: download model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("modelslab: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("modelslab: read model: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("modelslab: empty model file")
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "model/gltf-binary"
	}
	return data, format, nil
}
