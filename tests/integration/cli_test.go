// Package integration provides integration tests for ale commands.
package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// aleBinary is the path of the binary built by TestMain.
var aleBinary string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "ale-integration-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	aleBinary = filepath.Join(dir, "ale")

	build := exec.Command("go", "build", "-o", aleBinary, "./cmd/ale")
	build.Dir = filepath.Join("..", "..")
	if out, err := build.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "go build ./cmd/ale: %v\n%s", err, out)
		os.RemoveAll(dir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// setupExperiment writes a corpus, precomputed predictions and an
// experiment config into a temp directory and returns it.
func setupExperiment(t *testing.T, strategy string) string {
	t.Helper()
	dir := t.TempDir()

	var corpus, preds strings.Builder
	topics := []string{"football match goal striker", "election vote parliament minister", "protein enzyme cell membrane"}
	for id := 0; id < 30; id++ {
		fmt.Fprintf(&corpus, `{"id":%d,"text":"%s report %d"}`+"\n", id, topics[id%3], id)
		conf := 0.4 + float64(id%5)/10
		fmt.Fprintf(&preds, `{"id":%d,"tokens":[{"text":"a","labels":{"O":%.2f,"B-PER":%.2f}}]}`+"\n", id, conf, 1-conf)
	}
	writeFile(t, filepath.Join(dir, "corpus.jsonl"), corpus.String())
	writeFile(t, filepath.Join(dir, "predictions.jsonl"), preds.String())

	cfg := `experiment:
  name: integration
  seeds: [1, 2]
  step_size: 4
  annotation_budget: 14
  initial_size: 2
  labels: [O, B-PER]
teacher:
  strategy: ` + strategy + `
  sampling_budget: 10
corpus:
  path: corpus.jsonl
predictor:
  file: predictions.jsonl
tracking:
  db: runs.db
`
	writeFile(t, filepath.Join(dir, "ale.yml"), cfg)

	// empty global config
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// runALE executes ale in dir and returns stdout and the exit code.
// Logs go to stderr and are reported on failure.
func runALE(t *testing.T, dir string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(aleBinary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+filepath.Join(dir, "config"),
		"ALE_PREDICTOR_URL=", "ALE_EMBEDDING_URL=", "ALE_TRACKING_DB=")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("running ale: %v", err)
	}
	if code != 0 {
		t.Logf("ale %v exited %d\nstderr: %s", args, code, stderr.String())
	}
	return stdout.String(), code
}

func TestTeachers(t *testing.T) {
	out, code := runALE(t, t.TempDir(), "teachers")
	if code != 0 {
		t.Fatalf("teachers exited %d", code)
	}

	var resp struct {
		Teachers []string `json:"teachers"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(resp.Teachers) != 8 {
		t.Errorf("got %d teachers, want 8: %v", len(resp.Teachers), resp.Teachers)
	}
}

func TestRun(t *testing.T) {
	dir := setupExperiment(t, "least-confidence")

	out, code := runALE(t, dir, "run", "--parallel", "2", "--out", "proposals.jsonl")
	if code != 0 {
		t.Fatalf("run exited %d\n%s", code, out)
	}

	var resp struct {
		Seeds []struct {
			Seed    int64  `json:"seed"`
			RunID   string `json:"run_id"`
			Summary struct {
				Rounds     int    `json:"rounds"`
				CorpusSize int    `json:"corpus_size"`
				State      string `json:"state"`
			} `json:"summary"`
		} `json:"seeds"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(resp.Seeds) != 2 {
		t.Fatalf("got %d seeds, want 2", len(resp.Seeds))
	}
	for _, s := range resp.Seeds {
		// 2 initial + 4 + 4 + 4
		if s.Summary.Rounds != 3 || s.Summary.CorpusSize != 14 || s.Summary.State != "BUDGET_EXHAUSTED" {
			t.Errorf("seed %d summary = %+v", s.Seed, s.Summary)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "proposals.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 6 {
		t.Errorf("proposals.jsonl has %d lines, want 6", n)
	}

	out, code = runALE(t, dir, "runs", "--experiment", "integration")
	if code != 0 {
		t.Fatalf("runs exited %d", code)
	}
	var runs struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if runs.Total != 2 {
		t.Errorf("tracked %d runs, want 2", runs.Total)
	}

	out, code = runALE(t, dir, "runs", "show", resp.Seeds[0].RunID)
	if code != 0 {
		t.Fatalf("runs show exited %d", code)
	}
	if !strings.Contains(out, `"proposed"`) {
		t.Errorf("runs show output lacks metrics:\n%s", out)
	}
}

func TestPropose(t *testing.T) {
	dir := setupExperiment(t, "margin-confidence")

	out, code := runALE(t, dir, "propose", "--ids", "3,4,5,6,7,8", "--corpus-size", "12")
	if code != 0 {
		t.Fatalf("propose exited %d", code)
	}
	var res struct {
		IDs      []int `json:"ids"`
		StepSize int   `json:"step_size"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	// two documents left of the annotation budget
	if res.StepSize != 2 || len(res.IDs) != 2 {
		t.Errorf("propose = %+v, want 2 ids", res)
	}
}

func TestCluster(t *testing.T) {
	dir := setupExperiment(t, "k-means")

	out, code := runALE(t, dir, "cluster", "--docs")
	if code != 0 {
		t.Fatalf("cluster exited %d", code)
	}
	var resp struct {
		K         int   `json:"k"`
		Sizes     []int `json:"sizes"`
		Documents []struct {
			ID int `json:"id"`
		} `json:"documents"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if resp.K < 2 || resp.K > 10 {
		t.Errorf("k = %d, want within [2, 10]", resp.K)
	}
	if len(resp.Documents) != 30 {
		t.Errorf("got %d documents, want 30", len(resp.Documents))
	}
}

func TestExitCodes(t *testing.T) {
	dir := setupExperiment(t, "least-confidence")
	writeFile(t, filepath.Join(dir, "bad.yml"), "experiment:\n  step_size: 0\n")

	if _, code := runALE(t, dir, "--config", "bad.yml", "run"); code != 2 {
		t.Errorf("invalid config exit code = %d, want 2", code)
	}
	if _, code := runALE(t, dir, "propose", "--teacher", "oracle"); code != 3 {
		t.Errorf("unknown teacher exit code = %d, want 3", code)
	}
	if _, code := runALE(t, dir, "propose", "--ids", "1,2,999"); code != 5 {
		t.Errorf("missing prediction exit code = %d, want 5", code)
	}
}
