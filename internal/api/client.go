// Package api is the HTTP client for the remote assessment service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"verdict-cli/internal/model"
)

const DefaultBaseURL = "http://localhost:8000"

// Service is the remote collaborator the session talks to. Client implements it; tests
// substitute fakes.
type Service interface {
	ListTopics(ctx context.Context) ([]model.Topic, error)
	FetchTests(ctx context.Context, topic string) (model.TopicTests, error)
	FetchPerturbations(ctx context.Context, topic string) (model.PerturbationBatch, error)
	GeneratePerturbations(ctx context.Context, req GenerateRequest) (model.PerturbationBatch, error)
	Assess(ctx context.Context, id string, gt model.GroundTruth) error
	EditTest(ctx context.Context, id, statement string, gt model.GroundTruth) error
	DeleteTest(ctx context.Context, id string) error
	AutoGrade(ctx context.Context, ids []string) (model.AutoGradeResult, error)
	ListCriteriaTypes(ctx context.Context) ([]model.CriteriaType, error)
	ClearTopicCache(ctx context.Context, topic, modelID string) error
}

// GenerateRequest asks for perturbed variants of TestIDs. An empty CriteriaTypes lets the
// server pick its defaults.
type GenerateRequest struct {
	Topic         string   `json:"topic"`
	TestIDs       []string `json:"test_ids"`
	CriteriaTypes []string `json:"criteria_types,omitempty"`
}

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Service = (*Client)(nil)

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *zap.Logger
	timeout    time.Duration
}

// New creates a Client for baseURL. The token is sent as a bearer token on every request.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: invalid base url %q: %w", baseURL, err)
	}
	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("api: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// errorBody is the error payload shape: {"detail": "..."}.
type errorBody struct {
	Detail any `json:"detail"`
}

func (e errorBody) text() string {
	switch d := e.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}

func (c *Client) url(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, p := range parts {
		b.WriteString("/")
		b.WriteString(p)
	}
	return b.String()
}

// doJSON sends in (when non-nil) as the JSON body and decodes the response into out
// (when non-nil). Non-2xx responses become *RequestError.
func (c *Client) doJSON(ctx context.Context, method, u, op string, in, out any) error {
	if c.token == "" {
		return fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api response",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb errorBody
		detail := ""
		if json.Unmarshal(raw, &eb) == nil {
			detail = eb.text()
		}
		return &RequestError{Op: op, Status: resp.StatusCode, Detail: detail}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) ListTopics(ctx context.Context) ([]model.Topic, error) {
	var out []model.Topic
	if err := c.doJSON(ctx, http.MethodGet, c.url("api/v1/topics/"), "list topics", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchTests(ctx context.Context, topic string) (model.TopicTests, error) {
	var out model.TopicTests
	u := c.url("api/v1/tests/topic", url.PathEscape(topic))
	if err := c.doJSON(ctx, http.MethodGet, u, "fetch tests", nil, &out); err != nil {
		return model.TopicTests{}, err
	}
	if out.Topic == "" {
		out.Topic = topic
	}
	return out, nil
}

func (c *Client) FetchPerturbations(ctx context.Context, topic string) (model.PerturbationBatch, error) {
	var out model.PerturbationBatch
	u := c.url("api/v1/perturbations/topic", url.PathEscape(topic))
	if err := c.doJSON(ctx, http.MethodGet, u, "fetch perturbations", nil, &out); err != nil {
		return model.PerturbationBatch{}, err
	}
	return out, nil
}

func (c *Client) GeneratePerturbations(ctx context.Context, req GenerateRequest) (model.PerturbationBatch, error) {
	if len(req.TestIDs) == 0 {
		return model.PerturbationBatch{}, fmt.Errorf("generate perturbations: no test ids")
	}
	var out model.PerturbationBatch
	if err := c.doJSON(ctx, http.MethodPost, c.url("api/v1/perturbations/generate"), "generate perturbations", req, &out); err != nil {
		return model.PerturbationBatch{}, err
	}
	return out, nil
}

func (c *Client) Assess(ctx context.Context, id string, gt model.GroundTruth) error {
	if !gt.Graded() {
		return fmt.Errorf("update assessment: invalid assessment %q", gt)
	}
	u := c.url("api/v1/tests/assessment", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodPut, u, "update assessment", map[string]string{"assessment": string(gt)}, nil)
}

func (c *Client) EditTest(ctx context.Context, id, statement string, gt model.GroundTruth) error {
	u := c.url("api/v1/tests/edit", url.PathEscape(id))
	body := map[string]string{"title": statement, "ground_truth": string(gt)}
	return c.doJSON(ctx, http.MethodPut, u, "edit test", body, nil)
}

func (c *Client) DeleteTest(ctx context.Context, id string) error {
	u := c.url("api/v1/tests/delete", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, u, "delete test", nil, nil)
}

func (c *Client) AutoGrade(ctx context.Context, ids []string) (model.AutoGradeResult, error) {
	var out model.AutoGradeResult
	body := map[string][]string{"test_ids": ids}
	if err := c.doJSON(ctx, http.MethodPost, c.url("api/v1/tests/auto-grade"), "auto-grade", body, &out); err != nil {
		return model.AutoGradeResult{}, err
	}
	return out, nil
}

func (c *Client) ListCriteriaTypes(ctx context.Context) ([]model.CriteriaType, error) {
	var out struct {
		CriteriaTypes []model.CriteriaType `json:"criteria_types"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.url("api/v1/criteria/types"), "list criteria types", nil, &out); err != nil {
		return nil, err
	}
	if out.CriteriaTypes == nil {
		return []model.CriteriaType{}, nil
	}
	return out.CriteriaTypes, nil
}

func (c *Client) ClearTopicCache(ctx context.Context, topic, modelID string) error {
	u := c.url("api/v1/tests/cache/clear", url.PathEscape(topic))
	return c.doJSON(ctx, http.MethodPost, u, "clear cache", map[string]string{"model_id": modelID}, nil)
}
