package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/pii"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// execute runs the root command in-process and returns what it wrote to stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "GEMINI_API_KEY", "DATABASE_URL",
		"RESUME_OPTIMIZER_EMBEDDING_API_KEY", "RESUME_OPTIMIZER_GENERATION_API_KEY",
		"RESUME_OPTIMIZER_DATABASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestScanCommand_File(t *testing.T) {
	path := writeFile(t, "cv.txt", "Ana Souza\nana.souza@example.com\nCPF 529.982.247-25")

	out, err := execute(t, "", "scan", path)
	require.NoError(t, err)

	var resp types.ScanResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotContains(t, out, "ana.souza@example.com")
	assert.NotContains(t, out, "529.982.247-25")
	assert.Contains(t, string(resp.MaskedText), pii.PlaceholderEmail)
	assert.Contains(t, string(resp.MaskedText), pii.PlaceholderCPF)
	assert.Equal(t, 1, resp.Summary[types.PIIEmail])
	assert.Equal(t, 1, resp.Summary[types.PIICPF])
}

func TestScanCommand_Stdin(t *testing.T) {
	out, err := execute(t, "sem dados pessoais", "scan")
	require.NoError(t, err)

	var resp types.ScanResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, types.MaskedText("sem dados pessoais"), resp.MaskedText)
	assert.Empty(t, resp.Findings)
}

func TestOptimizeCommand_RequiredFlags(t *testing.T) {
	_, err := execute(t, "", "optimize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s)")
}

func TestOptimizeCommand_SingleStdin(t *testing.T) {
	_, err := execute(t, "x", "optimize", "--resume", "-", "--job", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one of --resume and --job")
}

func TestOptimizeCommand_MissingAPIKey(t *testing.T) {
	clearProviderEnv(t)
	resume := writeFile(t, "cv.txt", "Engenheira Go")
	job := writeFile(t, "job.txt", "Vaga Go")

	_, err := execute(t, "", "optimize", "--resume", resume, "--job", job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestOptimizeCommand_InvalidOptions(t *testing.T) {
	resume := writeFile(t, "cv.txt", "Engenheira Go")
	job := writeFile(t, "job.txt", "Vaga Go")

	_, err := execute(t, "", "optimize", "--resume", resume, "--job", job, "--max-retries", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

// fakeOpenAI serves /embeddings and /chat/completions and records every request body.
type fakeOpenAI struct {
	mu     sync.Mutex
	bodies []string
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.Unmarshal(body, &req)
		data := make([]string, len(req.Input))
		for i := range req.Input {
			data[i] = fmt.Sprintf(`{"index":%d,"embedding":[1,0,0]}`, i)
		}
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(data, ","))
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		content := `{"optimized_text":"Engenheira Go com foco em APIs. Contato: [MASKED_EMAIL]","score":0.8,"suggestions":["Quantifique resultados"],"keywords":["Go","APIs"]}`
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	default:
		http.NotFound(w, r)
	}
}

func TestOptimizeCommand_EndToEnd(t *testing.T) {
	clearProviderEnv(t)
	fake := &fakeOpenAI{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Setenv("RESUME_OPTIMIZER_EMBEDDING_PROVIDER", "openai")
	t.Setenv("RESUME_OPTIMIZER_EMBEDDING_BASE_URL", srv.URL)
	t.Setenv("RESUME_OPTIMIZER_EMBEDDING_API_KEY", "emb-key")
	t.Setenv("RESUME_OPTIMIZER_GENERATION_PROVIDER", "openai")
	t.Setenv("RESUME_OPTIMIZER_GENERATION_BASE_URL", srv.URL)
	t.Setenv("RESUME_OPTIMIZER_GENERATION_API_KEY", "gen-key")
	t.Setenv("RESUME_OPTIMIZER_GENERATION_MODEL", "gpt-test")

	resume := writeFile(t, "cv.txt", "Ana Souza, engenheira Go. Contato: ana.souza@example.com")
	job := writeFile(t, "job.txt", "Vaga para engenharia de APIs em Go")

	out, err := execute(t, "", "optimize", "--resume", resume, "--job", job, "--job-title", "Backend")
	require.NoError(t, err)

	var resp types.OptimizeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.NotNil(t, resp.Result)
	assert.InDelta(t, 0.9, float64(resp.Result.Score), 1e-9)
	assert.Equal(t, 1, resp.Result.AttemptCount)
	assert.Equal(t, []string{"go", "apis"}, resp.Result.Keywords)
	assert.Equal(t, 1, resp.ResumePII[types.PIIEmail])
	assert.NotEmpty(t, resp.RequestID)
	assert.Empty(t, resp.ID)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.GreaterOrEqual(t, len(fake.bodies), 3)
	for _, body := range fake.bodies {
		assert.NotContains(t, body, "ana.souza@example.com")
	}
}

func TestMigrateCommand_RequiresDatabase(t *testing.T) {
	clearProviderEnv(t)

	_, err := execute(t, "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is required")
}

func TestConfigFlag_MissingFile(t *testing.T) {
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestNewEmbeddingProvider_Unknown(t *testing.T) {
	_, err := newEmbeddingProvider(context.Background(), config.EmbeddingConfig{Provider: "azure"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}

func TestOpenDatabase_DisabledWithoutURL(t *testing.T) {
	database, err := openDatabase(context.Background(), config.DatabaseConfig{}, true)
	require.NoError(t, err)
	assert.Nil(t, database)
}

func TestScanCommand_TextFormat(t *testing.T) {
	out, err := execute(t, "Contato: ana@example.com", "scan", "--format", "text")
	require.NoError(t, err)

	assert.Contains(t, out, "PII SCAN")
	assert.Contains(t, out, "email=1")
	assert.Contains(t, out, pii.PlaceholderEmail)
	assert.NotContains(t, out, "ana@example.com")
}

func TestScanCommand_UnknownFormat(t *testing.T) {
	_, err := execute(t, "x", "scan", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
