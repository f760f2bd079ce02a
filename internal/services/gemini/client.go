package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"matchlens/internal/config"
	"matchlens/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultBaseURL     = "https://generativelanguage.googleapis.com"
	uploadMIMEType     = "video/mp4"
)

// HandleState reports the remote processing state of an uploaded artifact.
type HandleState string

const (
	StateProcessing HandleState = "PROCESSING"
	StateReady      HandleState = "READY"
	StateFailed     HandleState = "FAILED"
)

// Handle identifies an uploaded artifact on the inference service. The worker
// that obtained it owns it exclusively until Release.
type Handle struct {
	Name     string
	URI      string
	MIMEType string
}

// Config captures the runtime settings required to talk to the service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// FromAppConfig builds client settings from the application configuration.
func FromAppConfig(cfg *config.Config) Config {
	return Config{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		Model:          cfg.Gemini.Model,
		TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
	}
}

// Client wraps the generative language files and generateContent APIs. The
// client performs single-shot requests and classifies failures as transient
// or permanent; retry policy belongs to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type fileResource struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type uploadResponse struct {
	File fileResource `json:"file"`
}

// Submit uploads the clip artifact and returns an opaque handle. This is the
// sole external-resource-acquisition point of the per-clip protocol.
func (c *Client) Submit(ctx context.Context, artifactPath string) (Handle, error) {
	var empty Handle
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "gemini", "submit", "api key required", nil)
	}
	file, err := os.Open(artifactPath)
	if err != nil {
		return empty, services.Wrap(services.ErrPermanent, "gemini", "submit", fmt.Sprintf("open artifact %q", artifactPath), err)
	}
	defer file.Close()

	endpoint := c.cfg.BaseURL + "/upload/v1beta/files?uploadType=media&key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return empty, services.Wrap(services.ErrPermanent, "gemini", "submit", "new request", err)
	}
	req.Header.Set("Content-Type", uploadMIMEType)
	if info, statErr := file.Stat(); statErr == nil {
		req.ContentLength = info.Size()
	}

	body, err := c.do(req, "submit")
	if err != nil {
		return empty, err
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrTransient, "gemini", "submit", "decode response", err)
	}
	if parsed.File.Name == "" {
		return empty, services.Wrap(services.ErrTransient, "gemini", "submit", "response missing file name", nil)
	}
	return Handle{Name: parsed.File.Name, URI: parsed.File.URI, MIMEType: uploadMIMEType}, nil
}

// Poll checks handle readiness. A FAILED state is reported as a permanent
// error so callers short-circuit without retrying.
func (c *Client) Poll(ctx context.Context, handle Handle) (HandleState, error) {
	endpoint := c.cfg.BaseURL + "/v1beta/" + handle.Name + "?key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StateFailed, services.Wrap(services.ErrPermanent, "gemini", "poll", "new request", err)
	}

	body, err := c.do(req, "poll")
	if err != nil {
		return StateFailed, err
	}

	var parsed fileResource
	if err := json.Unmarshal(body, &parsed); err != nil {
		return StateFailed, services.Wrap(services.ErrTransient, "gemini", "poll", "decode response", err)
	}
	switch strings.ToUpper(strings.TrimSpace(parsed.State)) {
	case "ACTIVE":
		return StateReady, nil
	case "PROCESSING", "":
		return StateProcessing, nil
	case "FAILED":
		message := "capability reported processing failure"
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return StateFailed, services.Wrap(services.ErrPermanent, "gemini", "poll", message, nil)
	default:
		return StateFailed, services.Wrap(services.ErrPermanent, "gemini", "poll", fmt.Sprintf("unknown state %q", parsed.State), nil)
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MIMEType string `json:"mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Infer runs the model against the uploaded artifact with the supplied prompt
// and returns the raw text response.
func (c *Client) Infer(ctx context.Context, handle Handle, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrConfiguration, "gemini", "infer", "prompt required", nil)
	}
	payload := generateRequest{
		Contents: []content{{
			Parts: []part{
				{FileData: &fileData{FileURI: handle.URI, MIMEType: handle.MIMEType}},
				{Text: prompt},
			},
		}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "gemini", "infer", "encode body", err)
	}

	endpoint := c.cfg.BaseURL + "/v1beta/models/" + url.PathEscape(c.cfg.Model) + ":generateContent?key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "gemini", "infer", "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "infer")
	if err != nil {
		return "", err
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrTransient, "gemini", "infer", "decode response", err)
	}
	if parsed.Error != nil {
		return "", services.Wrap(services.ErrPermanent, "gemini", "infer", "api error: "+parsed.Error.Message, nil)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", services.Wrap(services.ErrPermanent, "gemini", "infer", "content blocked: "+parsed.PromptFeedback.BlockReason, nil)
	}
	var text strings.Builder
	for _, candidate := range parsed.Candidates {
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return "", services.Wrap(services.ErrTransient, "gemini", "infer", "empty response", nil)
	}
	return text.String(), nil
}

// Release deletes the uploaded artifact. It is idempotent: releasing a handle
// that is already gone succeeds.
func (c *Client) Release(ctx context.Context, handle Handle) error {
	if handle.Name == "" {
		return nil
	}
	endpoint := c.cfg.BaseURL + "/v1beta/" + handle.Name + "?key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "gemini", "release", "new request", err)
	}
	_, err = c.do(req, "release")
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		marker := services.ErrTransient
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			marker = services.ErrTimeout
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, services.Wrap(marker, "gemini", op, "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "gemini", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
		return nil, services.Wrap(classifyStatus(resp.StatusCode), "gemini", op, "", statusErr)
	}
	return body, nil
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return services.ErrTransient
	default:
		return services.ErrPermanent
	}
}
