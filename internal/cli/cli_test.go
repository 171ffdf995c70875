package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"verdict-cli/internal/model"
)

// fakeAPI is an in-memory assessment service for one topic.
type fakeAPI struct {
	mu         sync.Mutex
	tests      []model.Test
	perts      []model.Perturbation
	failDelete map[string]bool
	assessed   map[string]string
	added      []model.NewTest
	created    model.CreateTopicRequest
	criteria   map[string]model.CriteriaInfo
	model      string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tests: []model.Test{
			{ID: "A", Topic: "Energy", Statement: "Solar panels work at night", GroundTruth: model.GroundTruthUnacceptable, AIAssessment: model.AIFail, Agreement: model.BoolPtr(true)},
			{ID: "B", Topic: "Energy", Statement: "Wind is renewable", GroundTruth: model.GroundTruthAcceptable, AIAssessment: model.AIPass, Agreement: model.BoolPtr(true)},
			{ID: "C", Topic: "Energy", Statement: "Coal is clean", GroundTruth: model.GroundTruthUngraded, AIAssessment: model.AIFail},
		},
		perts: []model.Perturbation{
			{ID: "a1", OriginalID: "A", Title: "Solar panels function at night", Type: "synonyms", Label: model.AIFail, Topic: "Energy", GroundTruth: model.GroundTruthUnacceptable},
		},
		failDelete: map[string]bool{},
		assessed:   map[string]string{},
		criteria:   map[string]model.CriteriaInfo{},
		model:      "llama-3",
	}
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/v1/topics/", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []string{"Energy", "Motion"})
	})
	mux.HandleFunc("GET /api/v1/tests/topic/{topic}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("topic") != "Energy" {
			http.Error(w, `{"detail":"unknown topic"}`, http.StatusNotFound)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, model.TopicTests{Topic: "Energy", TotalTests: len(f.tests), Tests: f.tests})
	})
	mux.HandleFunc("GET /api/v1/perturbations/topic/{topic}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, model.PerturbationBatch{Perturbations: f.perts})
	})
	mux.HandleFunc("POST /api/v1/perturbations/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestIDs []string `json:"test_ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var out []model.Perturbation
		for _, id := range req.TestIDs {
			out = append(out, model.Perturbation{ID: id + "-neg", OriginalID: id, Title: "not " + id, Type: "negation", Label: model.AIPass, Topic: "Energy", GroundTruth: model.GroundTruthAcceptable})
		}
		reply(w, model.PerturbationBatch{Perturbations: out})
	})
	mux.HandleFunc("PUT /api/v1/tests/assessment/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.assessed[r.PathValue("id")] = body["assessment"]
		reply(w, model.Message{Message: "ok"})
	})
	mux.HandleFunc("DELETE /api/v1/tests/delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if f.failDelete[id] {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"database is locked"}`))
			return
		}
		kept := f.tests[:0]
		for _, ts := range f.tests {
			if ts.ID != id {
				kept = append(kept, ts)
			}
		}
		f.tests = kept
		reply(w, model.Message{Message: "deleted"})
	})
	mux.HandleFunc("GET /api/v1/criteria/types", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"criteria_types": []model.CriteriaType{{Name: "negation", IsDefault: true}}})
	})
	mux.HandleFunc("POST /api/v1/tests/add", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Topic string          `json:"topic"`
			Tests []model.NewTest `json:"tests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.added = append(f.added, body.Tests...)
		reply(w, model.AddedTests{AddedCount: len(body.Tests)})
	})
	mux.HandleFunc("POST /api/v1/tests/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Count int `json:"num_statements"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply(w, model.AddedTests{AddedCount: req.Count})
	})
	mux.HandleFunc("POST /api/v1/tests/topics/create", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		reply(w, model.Message{Message: "Topic created"})
	})
	mux.HandleFunc("GET /api/v1/criteria/type/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ci, ok := f.criteria[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Criteria not found"}`))
			return
		}
		reply(w, ci)
	})
	mux.HandleFunc("POST /api/v1/criteria/add-type", func(w http.ResponseWriter, r *http.Request) {
		var ci model.CriteriaInfo
		_ = json.NewDecoder(r.Body).Decode(&ci)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.criteria[ci.Name] = ci
		reply(w, model.Message{Message: "Custom criteria added"})
	})
	mux.HandleFunc("DELETE /api/v1/criteria/delete-type/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.criteria, r.PathValue("name"))
		reply(w, model.Message{Message: "deleted"})
	})
	mux.HandleFunc("GET /api/v1/models/available", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []model.LLM{{ID: "llama-3", Name: "Llama 3"}, {ID: "gemini", Name: "Gemini"}})
	})
	mux.HandleFunc("GET /api/v1/models/current", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, model.LLM{ID: f.model})
	})
	mux.HandleFunc("POST /api/v1/models/select", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.model = body["id"]
		reply(w, model.Message{Message: "ok"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})
	return mux
}

type cliEnv struct {
	t   *testing.T
	api *fakeAPI
	srv *httptest.Server
	dir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("VERDICT_CONFIG_DIR", t.TempDir())
	t.Setenv("VERDICT_TOKEN", "tok")
	t.Setenv("VERDICT_API_URL", "")
	f := newFakeAPI()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return &cliEnv{t: t, api: f, srv: srv, dir: t.TempDir()}
}

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

func (e *cliEnv) run(args ...string) ([]byte, error) {
	e.t.Helper()
	full := append([]string{"--api-url", e.srv.URL, "--dir", e.dir}, args...)
	stdout, _, err := runCLI(e.t, full)
	return stdout, err
}

func (e *cliEnv) mustEnv(args ...string) map[string]any {
	e.t.Helper()
	stdout, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("command failed: verdict %v\nerr: %v\nstdout:\n%s", args, err, stdout)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		e.t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, stdout, args)
	}
	if _, ok := env["data"]; !ok {
		e.t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
	}
	return env
}

func ids(t *testing.T, data any) []string {
	t.Helper()
	xs, ok := data.([]any)
	if !ok {
		t.Fatalf("expected a list, got %T", data)
	}
	var out []string
	for _, x := range xs {
		m, _ := x.(map[string]any)
		id, _ := m["id"].(string)
		out = append(out, id)
	}
	return out
}

func TestTestsList_FlattensExpandedVariants(t *testing.T) {
	e := newCLIEnv(t)

	env := e.mustEnv("tests", "list", "Energy")
	if diff := cmp.Diff([]string{"A", "B", "C"}, ids(t, env["data"])); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	env = e.mustEnv("tests", "list", "Energy", "--expand-all", "--sort", "statement:desc")
	if diff := cmp.Diff([]string{"B", "A", "a1", "C"}, ids(t, env["data"])); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	child := env["data"].([]any)[2].(map[string]any)
	if child["kind"] != "variant" || child["parent_id"] != "A" || child["criteria"] != "synonyms" || child["agreement"] != "match" {
		t.Fatalf("unexpected variant row: %#v", child)
	}

	env = e.mustEnv("tests", "list", "Energy", "--filter", "ground_truth=ungraded")
	if diff := cmp.Diff([]string{"C"}, ids(t, env["data"])); diff != "" {
		t.Fatalf("filtered rows mismatch (-want +got):\n%s", diff)
	}
	meta := env["meta"].(map[string]any)
	if meta["filtered"] != float64(1) || meta["total"] != float64(3) {
		t.Fatalf("unexpected meta: %#v", meta)
	}

	if _, err := e.run("tests", "list", "Energy", "--sort", "nope"); err == nil {
		t.Fatalf("expected an unknown sort column to fail")
	}
}

func TestTestsAssess_OnlyUngraded(t *testing.T) {
	e := newCLIEnv(t)

	env := e.mustEnv("tests", "assess", "C", "acceptable", "--topic", "Energy")
	row := env["data"].(map[string]any)
	if row["ground_truth"] != "acceptable" || row["agreement"] != "mismatch" {
		t.Fatalf("unexpected row: %#v", row)
	}
	if got := e.api.assessed["C"]; got != "acceptable" {
		t.Fatalf("expected the service to receive the verdict, got %q", got)
	}

	if _, err := e.run("tests", "assess", "A", "acceptable", "--topic", "Energy"); err == nil {
		t.Fatalf("expected assessing a graded test to fail")
	}
	if _, err := e.run("tests", "assess", "C", "maybe", "--topic", "Energy"); err == nil {
		t.Fatalf("expected an invalid verdict to fail")
	}
}

func TestTestsDelete_PartialFailure(t *testing.T) {
	e := newCLIEnv(t)
	e.api.failDelete["B"] = true

	stdout, err := e.run("tests", "delete", "A", "B", "--topic", "Energy")
	if err == nil {
		t.Fatalf("expected a partial failure to exit with an error")
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	data := env["data"].(map[string]any)
	if diff := cmp.Diff([]any{"A"}, data["deleted"]); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}
	if data["failed"].(map[string]any)["B"] != "database is locked" {
		t.Fatalf("expected the server detail for B, got %#v", data["failed"])
	}

	if _, err := e.run("tests", "delete", "nope", "--topic", "Energy"); err == nil {
		t.Fatalf("expected an unknown id to fail")
	}
}

func TestTestsMove_PersistsLocalOrder(t *testing.T) {
	e := newCLIEnv(t)

	env := e.mustEnv("tests", "move", "C", "--to", "A", "--topic", "Energy")
	if diff := cmp.Diff([]any{"C", "A", "B"}, env["data"].(map[string]any)["order"]); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	env = e.mustEnv("tests", "list", "Energy")
	if diff := cmp.Diff([]string{"C", "A", "B"}, ids(t, env["data"])); diff != "" {
		t.Fatalf("order after reload mismatch (-want +got):\n%s", diff)
	}
}

func TestTestsList_FallsBackToSnapshot(t *testing.T) {
	e := newCLIEnv(t)
	e.mustEnv("tests", "list", "Energy")
	e.srv.Close()

	env := e.mustEnv("tests", "list", "Energy")
	if diff := cmp.Diff([]string{"A", "B", "C"}, ids(t, env["data"])); diff != "" {
		t.Fatalf("cached rows mismatch (-want +got):\n%s", diff)
	}
	hints, _ := env["_hints"].([]any)
	if len(hints) != 1 || !strings.HasPrefix(hints[0].(string), "showing cached results") {
		t.Fatalf("expected a cached-results hint, got %#v", env["_hints"])
	}
	if _, err := e.run("tests", "assess", "C", "acceptable", "--topic", "Energy"); err == nil {
		t.Fatalf("expected mutations to be refused on cached rows")
	}
}

func TestPerturbationsGenerate(t *testing.T) {
	e := newCLIEnv(t)

	env := e.mustEnv("perturbations", "generate", "Energy", "B,C", "--types", "negation")
	if diff := cmp.Diff([]string{"B-neg", "C-neg"}, ids(t, env["data"])); diff != "" {
		t.Fatalf("generated mismatch (-want +got):\n%s", diff)
	}
	if msg := env["meta"].(map[string]any)["message"]; msg != "Generated 2 perturbations for 2 test statements" {
		t.Fatalf("unexpected message %v", msg)
	}
	if _, err := e.run("perturbations", "generate", "Energy"); err == nil {
		t.Fatalf("expected generate without ids to fail")
	}
}

func TestReport_MarkdownAndHTML(t *testing.T) {
	e := newCLIEnv(t)

	stdout, err := e.run("report", "Energy", "--expand-all")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	md := string(stdout)
	if !strings.HasPrefix(md, "# AI behavior report: Energy\n") || !strings.Contains(md, "↳ Solar panels function at night") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}

	out := filepath.Join(t.TempDir(), "energy.html")
	env := e.mustEnv("report", "Energy", "--html", "--out", out)
	if env["data"].(map[string]any)["written"] != out {
		t.Fatalf("unexpected output %#v", env["data"])
	}
	b, err := os.ReadFile(out)
	if err != nil || !strings.Contains(string(b), "<table>") {
		t.Fatalf("expected an html table in %s: %v", out, err)
	}
}

func TestConfig_SetShowRedactsToken(t *testing.T) {
	e := newCLIEnv(t)

	e.mustEnv("config", "set", "token", "secret-token-1234")
	e.mustEnv("config", "set", "pageSize", "20")
	env := e.mustEnv("config", "show")
	data := env["data"].(map[string]any)
	if data["token"] != "****1234" || data["pageSize"] != float64(20) {
		t.Fatalf("unexpected config: %#v", data)
	}
	if _, err := e.run("config", "set", "pageSize", "15"); err == nil {
		t.Fatalf("expected an invalid page size to fail")
	}
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	e := newCLIEnv(t)
	if _, err := e.run("--format", "xml", "criteria", "list"); err == nil {
		t.Fatalf("expected an unknown format to fail")
	}
	stdout, err := e.run("--format", "edn", "criteria", "list")
	if err != nil || !strings.Contains(string(stdout), `:name "negation"`) {
		t.Fatalf("expected edn output, got %q (%v)", stdout, err)
	}
}

func TestDocs_ListAndRaw(t *testing.T) {
	e := newCLIEnv(t)

	env := e.mustEnv("docs")
	topics, _ := env["data"].(map[string]any)["topics"].([]any)
	if len(topics) == 0 {
		t.Fatalf("expected embedded docs topics, got %#v", env["data"])
	}

	stdout, err := e.run("docs", "agreement", "--raw")
	if err != nil || !strings.HasPrefix(string(stdout), "# Agreement") {
		t.Fatalf("expected raw markdown, got %q (%v)", stdout, err)
	}
	if _, err := e.run("docs", "../config"); err == nil {
		t.Fatalf("expected an unknown topic to fail")
	}
}

func TestTestsAdd_FlagsAndFile(t *testing.T) {
	e := newCLIEnv(t)
	file := filepath.Join(t.TempDir(), "statements.yaml")
	yml := "- test: Tides follow the moon\n  ground_truth: acceptable\n- test: \"  \"\n"
	if err := os.WriteFile(file, []byte(yml), 0o644); err != nil {
		t.Fatalf("write statements: %v", err)
	}

	env := e.mustEnv("tests", "add", "Energy", "--test", "unacceptable: The sun is cold", "--file", file)
	data := env["data"].(map[string]any)
	if data["added"] != float64(2) {
		t.Fatalf("unexpected data: %#v", data)
	}
	want := []model.NewTest{
		{Statement: "The sun is cold", GroundTruth: model.GroundTruthUnacceptable},
		{Statement: "Tides follow the moon", GroundTruth: model.GroundTruthAcceptable},
	}
	e.api.mu.Lock()
	got := append([]model.NewTest(nil), e.api.added...)
	e.api.mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("added statements mismatch (-want +got):\n%s", diff)
	}

	if _, err := e.run("tests", "add", "Energy", "--test", "maybe: Wind is free"); err == nil {
		t.Fatalf("expected an ungraded statement to be refused")
	}
	if _, err := e.run("tests", "add", "Energy"); err == nil {
		t.Fatalf("expected an empty add to be refused")
	}

	env = e.mustEnv("tests", "generate", "Energy", "-n", "4")
	if env["data"].(map[string]any)["added"] != float64(4) {
		t.Fatalf("unexpected generate data: %#v", env["data"])
	}
}

func TestTopicsCreate_UsesNewTopic(t *testing.T) {
	e := newCLIEnv(t)

	e.mustEnv("topics", "create", "Tides", "--prompt", "Is this about tides?", "--test", "acceptable: Tides follow the moon", "--use")
	e.api.mu.Lock()
	created := e.api.created
	e.api.mu.Unlock()
	if created.Topic != "Tides" || created.PromptTopic != "Is this about tides?" || len(created.Tests) != 1 {
		t.Fatalf("unexpected create request %+v", created)
	}
	env := e.mustEnv("config", "show")
	if cur := env["data"].(map[string]any)["currentTopic"]; cur != "Tides" {
		t.Fatalf("expected Tides to become current, got %v", cur)
	}
	if _, err := e.run("topics", "create", "Tides"); err == nil {
		t.Fatalf("expected a missing prompt to be refused")
	}
}

func TestCriteria_AddShowDelete(t *testing.T) {
	e := newCLIEnv(t)

	e.mustEnv("criteria", "add", "leet", "--prompt", "Rewrite in leet", "--topic", "Energy")
	env := e.mustEnv("criteria", "show", "leet")
	info := env["data"].(map[string]any)
	if info["prompt"] != "Rewrite in leet" || info["topic"] != "Energy" {
		t.Fatalf("unexpected criteria: %#v", info)
	}
	e.mustEnv("criteria", "delete", "leet")
	if _, err := e.run("criteria", "show", "leet"); err == nil {
		t.Fatalf("expected a deleted criteria to be gone")
	}
}

func TestModels_UseRemembersModel(t *testing.T) {
	e := newCLIEnv(t)

	env := e.mustEnv("models", "list")
	if meta := env["meta"].(map[string]any); meta["current"] != "llama-3" {
		t.Fatalf("unexpected current model: %#v", meta)
	}
	e.mustEnv("models", "use", "gemini")
	env = e.mustEnv("models", "current")
	if env["data"].(map[string]any)["id"] != "gemini" {
		t.Fatalf("expected gemini selected, got %#v", env["data"])
	}
	env = e.mustEnv("config", "show")
	if m := env["data"].(map[string]any)["model"]; m != "gemini" {
		t.Fatalf("expected the config to remember gemini, got %v", m)
	}
}
