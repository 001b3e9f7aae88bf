package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/chatpsy/internal/batch"
)

const whatsappChat = "01.01.2024, 10:00 - Анна: Привет\n" +
	"01.01.2024, 10:01 - Борис: Пиши на boris@example.com\n" +
	"01.01.2024, 10:02 - Анна: Хорошо\n"

// execute runs the root command in a scratch directory so no config.yaml
// or .env from the repository leaks in.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CHATPSY_LOGGING_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "chatpsy "+version+" (commit: dev, built: unknown)\n", out)
}

func TestAnonymizeStdin(t *testing.T) {
	out, stderr, err := execute(t, whatsappChat, "anonymize", "--color", "never", "--legend")
	require.NoError(t, err)

	assert.Contains(t, out, "01.01.2024, 10:00 - USER_1: Привет")
	assert.Contains(t, out, "01.01.2024, 10:01 - USER_2: Пиши на [EMAIL]")
	assert.NotContains(t, out, "Анна")
	assert.NotContains(t, out, "boris@example.com")

	assert.Contains(t, stderr, "USER_1")
	assert.Contains(t, stderr, "Анна")
}

func TestAnonymizeJSON(t *testing.T) {
	out, _, err := execute(t, whatsappChat, "anonymize", "--json")
	require.NoError(t, err)

	var got anonymizeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]string{"Анна": "USER_1", "Борис": "USER_2"}, got.Mapping)
	assert.Equal(t, []string{"stdin.txt"}, got.FileNames)
	assert.NotContains(t, got.Anonymized, "Борис")
	assert.NotEmpty(t, got.Findings)
}

func TestAnonymizeRawModeKeepsNames(t *testing.T) {
	out, _, err := execute(t, whatsappChat, "anonymize", "--mode", "raw", "--color", "never")
	require.NoError(t, err)
	assert.Contains(t, out, "Анна: Привет")
	assert.Contains(t, out, "boris@example.com")
}

func TestAnonymizeFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.txt")
	require.NoError(t, os.WriteFile(path, []byte(whatsappChat), 0o600))
	skipped := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(skipped, []byte{0xff, 0xd8}, 0o600))

	out, stderr, err := execute(t, "", "anonymize", "--color", "never", path, skipped)
	require.NoError(t, err)
	assert.Contains(t, out, "USER_2: Пиши")
	assert.Contains(t, stderr, "skipped photo.jpg")
}

func TestAnonymizeInvalidFlags(t *testing.T) {
	_, _, err := execute(t, whatsappChat, "anonymize", "--mode", "plain")
	assert.Error(t, err)

	_, _, err = execute(t, whatsappChat, "anonymize", "--color", "sometimes")
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte(whatsappChat), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.txt"), []byte("01.01.2024, 09:00 - Вера: Ку\n"), 0o600))
	out := filepath.Join(t.TempDir(), "out")

	stdout, _, err := execute(t, "", "batch", in, "--out", out, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 anonymized, 0 failed")

	reports, err := batch.ReadSummary(filepath.Join(out, "summary.parquet"))
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	var anonymized int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".anon.txt") {
			anonymized++
			data, err := os.ReadFile(filepath.Join(out, e.Name()))
			require.NoError(t, err)
			assert.NotContains(t, string(data), "Анна")
			assert.NotContains(t, string(data), "Вера")
		}
	}
	assert.Equal(t, 2, anonymized)
}

func TestBatchRequiresInput(t *testing.T) {
	_, _, err := execute(t, "", "batch")
	assert.Error(t, err)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("CHATPSY_TEST_MARKER=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CHATPSY_TEST_MARKER") })

	_, _, err := execute(t, "", "version", "--env-file", env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", os.Getenv("CHATPSY_TEST_MARKER"))

	// a missing default .env is not an error
	_, _, err = execute(t, "", "version")
	assert.NoError(t, err)
}

func TestPerformHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := newHealthCheckCmd(&rootOptions{})
	cmd.SetOut(&out)

	require.NoError(t, performHealthCheck(cmd, srv.URL+"/health"))
	assert.Equal(t, "Health check passed\n", out.String())

	assert.Error(t, performHealthCheck(cmd, srv.URL+"/down"))
}
