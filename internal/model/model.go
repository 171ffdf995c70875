package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GroundTruth is the human assessment of a test statement.
type GroundTruth string

const (
	GroundTruthAcceptable   GroundTruth = "acceptable"
	GroundTruthUnacceptable GroundTruth = "unacceptable"
	GroundTruthUngraded     GroundTruth = "ungraded"
)

func (g GroundTruth) Valid() bool {
	switch g {
	case GroundTruthAcceptable, GroundTruthUnacceptable, GroundTruthUngraded:
		return true
	default:
		return false
	}
}

// Graded reports whether g is a final human judgment (not ungraded).
func (g GroundTruth) Graded() bool {
	return g == GroundTruthAcceptable || g == GroundTruthUnacceptable
}

func ParseGroundTruth(s string) (GroundTruth, error) {
	g := GroundTruth(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("invalid ground truth: %q (expected acceptable|unacceptable|ungraded)", s)
	}
	return g, nil
}

// AIAssessment is the model's verdict on a statement. "grading" means a verdict is
// being (re)computed remotely.
type AIAssessment string

const (
	AIPass    AIAssessment = "pass"
	AIFail    AIAssessment = "fail"
	AIGrading AIAssessment = "grading"
)

func (a AIAssessment) Valid() bool {
	switch a {
	case AIPass, AIFail, AIGrading:
		return true
	default:
		return false
	}
}

// AsGroundTruth maps pass -> acceptable and fail -> unacceptable.
// ok is false while grading.
func (a AIAssessment) AsGroundTruth() (g GroundTruth, ok bool) {
	switch a {
	case AIPass:
		return GroundTruthAcceptable, true
	case AIFail:
		return GroundTruthUnacceptable, true
	default:
		return "", false
	}
}

type Validity string

const (
	ValidityApproved   Validity = "approved"
	ValidityDenied     Validity = "denied"
	ValidityUnapproved Validity = "unapproved"
)

// Test is a test statement as returned by the assessment API.
type Test struct {
	ID           string       `json:"id"`
	Topic        string       `json:"topic"`
	Statement    string       `json:"statement"`
	GroundTruth  GroundTruth  `json:"ground_truth"`
	AIAssessment AIAssessment `json:"ai_assessment"`
	Agreement    *bool        `json:"agreement"`

	Labeler     string `json:"labeler,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	ModelScore  string `json:"model_score,omitempty"`
	IsBuiltin   bool   `json:"is_builtin,omitempty"`
}

// Perturbation is a generated variant of a test statement.
// OriginalID is the id of the test it was derived from.
type Perturbation struct {
	ID          string       `json:"id"`
	OriginalID  string       `json:"original_id"`
	Title       string       `json:"title"`
	Label       AIAssessment `json:"label"`
	Type        string       `json:"type"`
	Topic       string       `json:"topic"`
	GroundTruth GroundTruth  `json:"ground_truth"`
	Validity    Validity     `json:"validity,omitempty"`
	Agreement   *bool        `json:"agreement,omitempty"`
}

type Topic struct {
	Name      string `json:"name"`
	Prompt    string `json:"prompt,omitempty"`
	Default   bool   `json:"default,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	TestCount int    `json:"test_count,omitempty"`
}

// UnmarshalJSON accepts either a topic object or a bare topic name.
func (t *Topic) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*t = Topic{Name: name}
		return nil
	}
	type plain Topic
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = Topic(p)
	return nil
}

type CriteriaType struct {
	Name      string `json:"name"`
	IsCustom  bool   `json:"is_custom"`
	IsDefault bool   `json:"is_default"`
}

// TopicTests is the payload of a topic test listing.
type TopicTests struct {
	Topic      string `json:"topic"`
	TotalTests int    `json:"total_tests"`
	Tests      []Test `json:"tests"`
}

// PerturbationBatch is the payload of a perturbation fetch or generation.
type PerturbationBatch struct {
	Message       string         `json:"message,omitempty"`
	Perturbations []Perturbation `json:"perturbations"`
}

// Message is the generic {message} acknowledgement returned by mutating endpoints.
type Message struct {
	Message string `json:"message"`
}

type AutoGradeResult struct {
	Message     string `json:"message,omitempty"`
	GradedCount int    `json:"graded_count"`
}

func BoolPtr(b bool) *bool { return &b }

// NewTest is one statement submitted when adding tests or creating a topic.
type NewTest struct {
	Statement   string      `json:"test" yaml:"test"`
	GroundTruth GroundTruth `json:"ground_truth" yaml:"ground_truth"`
}

// MaxNewTests is how many statements one add or create request may carry.
const MaxNewTests = 10

// CleanNewTests trims statements, drops blank ones and checks the rest. Every kept
// statement needs an acceptable or unacceptable ground truth.
func CleanNewTests(in []NewTest) ([]NewTest, error) {
	out := make([]NewTest, 0, len(in))
	for _, t := range in {
		t.Statement = strings.TrimSpace(t.Statement)
		if t.Statement == "" {
			continue
		}
		t.GroundTruth = GroundTruth(strings.ToLower(strings.TrimSpace(string(t.GroundTruth))))
		if !t.GroundTruth.Graded() {
			return nil, fmt.Errorf("statement %q: ground truth must be acceptable or unacceptable", t.Statement)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errors.New("enter at least one test statement")
	}
	if len(out) > MaxNewTests {
		return nil, fmt.Errorf("at most %d statements per request, got %d", MaxNewTests, len(out))
	}
	return out, nil
}

type CreateTopicRequest struct {
	Topic       string    `json:"topic"`
	PromptTopic string    `json:"prompt_topic"`
	Tests       []NewTest `json:"tests"`
}

// AddedTests acknowledges statements added to a topic, by hand or generated.
type AddedTests struct {
	Message    string `json:"message,omitempty"`
	AddedCount int    `json:"added_count"`
}

// CriteriaInfo is the definition of one criteria type. FlipLabel marks criteria whose
// variants are expected to reverse the original verdict (negation, antonyms).
type CriteriaInfo struct {
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	FlipLabel bool   `json:"flip_label"`
	Topic     string `json:"topic,omitempty"`
}

// LLM is a grading model the service can use.
type LLM struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
