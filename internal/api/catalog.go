package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"verdict-cli/internal/model"
)

// Catalog manages what the dashboard reviews: topics, their statements, the criteria used
// to perturb them and the grading model. Client implements it.
type Catalog interface {
	CreateTopic(ctx context.Context, req model.CreateTopicRequest) (model.Message, error)
	AddStatements(ctx context.Context, topic string, tests []model.NewTest) (model.AddedTests, error)
	GenerateStatements(ctx context.Context, req StatementsRequest) (model.AddedTests, error)

	CriteriaInfo(ctx context.Context, name string) (model.CriteriaInfo, error)
	AddCriteria(ctx context.Context, c model.CriteriaInfo) (model.Message, error)
	EditCriteria(ctx context.Context, c model.CriteriaInfo) (model.Message, error)
	DeleteCriteria(ctx context.Context, name string) (model.Message, error)
	TryCriteriaPrompt(ctx context.Context, prompt, statement string) (string, error)
	DefaultCriteria(ctx context.Context, config string) ([]string, error)

	ListModels(ctx context.Context) ([]model.LLM, error)
	CurrentModel(ctx context.Context) (model.LLM, error)
	SelectModel(ctx context.Context, id string) error
}

var _ Catalog = (*Client)(nil)

// StatementsRequest asks the service to write Count new statements for Topic in the style
// of Criteria ("base" when empty).
type StatementsRequest struct {
	Topic    string `json:"topic"`
	Criteria string `json:"criteria"`
	Count    int    `json:"num_statements"`
}

const (
	DefaultStatementCriteria = "base"
	MaxGeneratedStatements   = 10
)

func (c *Client) CreateTopic(ctx context.Context, req model.CreateTopicRequest) (model.Message, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	req.PromptTopic = strings.TrimSpace(req.PromptTopic)
	if req.Topic == "" || req.PromptTopic == "" {
		return model.Message{}, fmt.Errorf("create topic: topic and prompt are required")
	}
	tests, err := model.CleanNewTests(req.Tests)
	if err != nil {
		return model.Message{}, fmt.Errorf("create topic: %w", err)
	}
	req.Tests = tests
	var out model.Message
	if err := c.doJSON(ctx, http.MethodPost, c.url("api/v1/tests/topics/create"), "create topic", req, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}

func (c *Client) AddStatements(ctx context.Context, topic string, tests []model.NewTest) (model.AddedTests, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return model.AddedTests{}, fmt.Errorf("add statements: topic is required")
	}
	tests, err := model.CleanNewTests(tests)
	if err != nil {
		return model.AddedTests{}, fmt.Errorf("add statements: %w", err)
	}
	body := struct {
		Topic string          `json:"topic"`
		Tests []model.NewTest `json:"tests"`
	}{topic, tests}
	var out model.AddedTests
	if err := c.doJSON(ctx, http.MethodPost, c.url("api/v1/tests/add"), "add statements", body, &out); err != nil {
		return model.AddedTests{}, err
	}
	if out.AddedCount == 0 {
		out.AddedCount = len(tests)
	}
	return out, nil
}

func (c *Client) GenerateStatements(ctx context.Context, req StatementsRequest) (model.AddedTests, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	req.Criteria = strings.TrimSpace(req.Criteria)
	if req.Topic == "" {
		return model.AddedTests{}, fmt.Errorf("generate statements: topic is required")
	}
	if req.Criteria == "" {
		req.Criteria = DefaultStatementCriteria
	}
	if req.Count < 1 || req.Count > MaxGeneratedStatements {
		return model.AddedTests{}, fmt.Errorf("generate statements: count must be between 1 and %d", MaxGeneratedStatements)
	}
	var out model.AddedTests
	if err := c.doJSON(ctx, http.MethodPost, c.url("api/v1/tests/generate"), "generate statements", req, &out); err != nil {
		return model.AddedTests{}, err
	}
	return out, nil
}

func (c *Client) CriteriaInfo(ctx context.Context, name string) (model.CriteriaInfo, error) {
	var out model.CriteriaInfo
	u := c.url("api/v1/criteria/type", url.PathEscape(strings.TrimSpace(name)))
	if err := c.doJSON(ctx, http.MethodGet, u, "criteria info", nil, &out); err != nil {
		return model.CriteriaInfo{}, err
	}
	return out, nil
}

func checkCriteria(op string, ci model.CriteriaInfo, needTopic bool) (model.CriteriaInfo, error) {
	ci.Name = strings.TrimSpace(ci.Name)
	ci.Prompt = strings.TrimSpace(ci.Prompt)
	ci.Topic = strings.TrimSpace(ci.Topic)
	if ci.Name == "" || ci.Prompt == "" {
		return ci, fmt.Errorf("%s: name and prompt are required", op)
	}
	if needTopic && ci.Topic == "" {
		return ci, fmt.Errorf("%s: topic is required", op)
	}
	return ci, nil
}

func (c *Client) AddCriteria(ctx context.Context, ci model.CriteriaInfo) (model.Message, error) {
	ci, err := checkCriteria("add criteria", ci, true)
	if err != nil {
		return model.Message{}, err
	}
	var out model.Message
	if err := c.doJSON(ctx, http.MethodPost, c.url("api/v1/criteria/add-type"), "add criteria", ci, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}

func (c *Client) EditCriteria(ctx context.Context, ci model.CriteriaInfo) (model.Message, error) {
	ci, err := checkCriteria("edit criteria", ci, false)
	if err != nil {
		return model.Message{}, err
	}
	// Edits cannot move a criteria type between topics.
	ci.Topic = ""
	var out model.Message
	if err := c.doJSON(ctx, http.MethodPut, c.url("api/v1/criteria/edit-type"), "edit criteria", ci, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}

func (c *Client) DeleteCriteria(ctx context.Context, name string) (model.Message, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Message{}, fmt.Errorf("delete criteria: name is required")
	}
	var out model.Message
	u := c.url("api/v1/criteria/delete-type", url.PathEscape(name))
	if err := c.doJSON(ctx, http.MethodDelete, u, "delete criteria", nil, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}

// TryCriteriaPrompt runs a criteria prompt against one statement without saving anything
// and returns the perturbed statement.
func (c *Client) TryCriteriaPrompt(ctx context.Context, prompt, statement string) (string, error) {
	body := map[string]string{"prompt": strings.TrimSpace(prompt), "test_case": strings.TrimSpace(statement)}
	if body["prompt"] == "" || body["test_case"] == "" {
		return "", fmt.Errorf("try criteria prompt: prompt and statement are required")
	}
	var out struct {
		Perturbed string `json:"perturbed"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.url("api/v1/criteria/test-prompt"), "try criteria prompt", body, &out); err != nil {
		return "", err
	}
	return out.Perturbed, nil
}

// DefaultCriteria lists the criteria types a named configuration generates by default.
func (c *Client) DefaultCriteria(ctx context.Context, config string) ([]string, error) {
	var out struct {
		DefaultTypes []string `json:"default_types"`
	}
	u := c.url("api/v1/criteria/defaults", url.PathEscape(strings.TrimSpace(config)))
	if err := c.doJSON(ctx, http.MethodGet, u, "default criteria", nil, &out); err != nil {
		return nil, err
	}
	if out.DefaultTypes == nil {
		return []string{}, nil
	}
	return out.DefaultTypes, nil
}

func (c *Client) ListModels(ctx context.Context) ([]model.LLM, error) {
	var out []model.LLM
	if err := c.doJSON(ctx, http.MethodGet, c.url("api/v1/models/available"), "list models", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return []model.LLM{}, nil
	}
	return out, nil
}

func (c *Client) CurrentModel(ctx context.Context) (model.LLM, error) {
	var out model.LLM
	if err := c.doJSON(ctx, http.MethodGet, c.url("api/v1/models/current"), "current model", nil, &out); err != nil {
		return model.LLM{}, err
	}
	return out, nil
}

func (c *Client) SelectModel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("select model: id is required")
	}
	return c.doJSON(ctx, http.MethodPost, c.url("api/v1/models/select"), "select model", map[string]string{"id": id}, nil)
}
