// Package analyzer is the outbound client for the external image-analysis
// service. It owns the request timeout and the normalization of every
// mode-specific response shape into models.AnalysisReport, so nothing past
// this boundary ever sees format drift.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kwehner/focalpoint/pkg/models"
)

// Request carries a job's immutable parameters to the analysis service.
// CallbackURL is where the service may POST interim progress messages.
type Request struct {
	ImageReference string `json:"image_reference"`
	AdvisorID      string `json:"advisor_id"`
	Mode           string `json:"mode"`
	EnableRAG      bool   `json:"enable_rag"`
	CallbackURL    string `json:"callback_url"`
}

// Client is the interface for dispatching analysis requests.
type Client interface {
	Analyze(ctx context.Context, req Request) (*models.AnalysisReport, error)
}

// HTTPClient implements Client against the analysis service's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new analysis client. The timeout is a hard ceiling
// on the whole call; an unbounded call here is exactly how jobs used to get
// stuck in analyzing forever.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Analyze(ctx context.Context, req Request) (*models.AnalysisReport, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	// Drain the whole body before trusting any field. A partially read
	// stream is indistinguishable from a truncated response and must land
	// in the malformed branch, not in an unhandled decode panic.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rejectionError(resp.StatusCode, body)
	}

	var ar analyzeResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("%w: %v (%d bytes)", ErrMalformedResponse, err, len(body))
	}

	if ar.Status == "error" || ar.Error != "" {
		if ar.Retryable {
			return nil, fmt.Errorf("%w (retryable): %s", ErrAnalyzerRejected, ar.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrAnalyzerRejected, ar.Error)
	}

	report, err := ar.normalize(req)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// rejectionError classifies a non-200 response, honoring an explicit
// retryable marker when the error body is well formed.
func rejectionError(status int, body []byte) error {
	var ar analyzeResponse
	if err := json.Unmarshal(body, &ar); err == nil && ar.Error != "" {
		if ar.Retryable {
			return fmt.Errorf("%w (retryable): status %d: %s", ErrAnalyzerRejected, status, ar.Error)
		}
		return fmt.Errorf("%w: status %d: %s", ErrAnalyzerRejected, status, ar.Error)
	}
	return fmt.Errorf("%w: status %d", ErrAnalyzerRejected, status)
}

// classifyError maps transport-level errors to sentinel errors. Only a
// genuine deadline counts as a timeout; a cancelled context is not one, and
// the worker never cancels an in-flight call anyway.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrAnalyzerTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrAnalyzerTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrAnalyzerUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrAnalyzerUnreachable, err)
}

// analyzeResponse is the union of the response shapes the analysis service
// produces across modes. Field names drifted between the default, RAG and
// adapter strategies; normalize() is the one place that knows about it.
type analyzeResponse struct {
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	Retryable bool    `json:"retryable,omitempty"`
	Model     string  `json:"model,omitempty"`
	Score     float64 `json:"score,omitempty"`

	// default / rag shape
	Critique   string   `json:"critique,omitempty"`
	Techniques []string `json:"techniques,omitempty"`
	Sources    []source `json:"sources,omitempty"`

	// legacy adapter shape
	Feedback string `json:"feedback,omitempty"`
}

type source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// normalize converts a decoded response into the canonical report.
// A response with neither critique nor feedback cannot produce a job outcome.
func (ar analyzeResponse) normalize(req Request) (*models.AnalysisReport, error) {
	critique := ar.Critique
	if critique == "" {
		critique = ar.Feedback
	}
	if critique == "" {
		return nil, fmt.Errorf("%w: status=%q model=%q critique/feedback empty, %d sources",
			ErrMissingFields, ar.Status, ar.Model, len(ar.Sources))
	}

	report := &models.AnalysisReport{
		Advisor:    req.AdvisorID,
		Mode:       req.Mode,
		Critique:   critique,
		Score:      ar.Score,
		Techniques: ar.Techniques,
		Model:      ar.Model,
	}
	for _, s := range ar.Sources {
		ref := s.Title
		if s.URL != "" {
			ref = s.Title + " (" + s.URL + ")"
		}
		report.References = append(report.References, ref)
	}
	return report, nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
