package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/ingest"
	"github.com/raaihank/chatpsy/internal/logger"
	"github.com/raaihank/chatpsy/internal/privacy"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, out string) *Pipeline {
	t.Helper()
	cfg := config.GetDefaults()
	anon, err := privacy.New(cfg.Privacy, logger.NewNop())
	require.NoError(t, err)
	loader, err := ingest.New(cfg.Ingest, logger.NewNop())
	require.NoError(t, err)

	bc := cfg.Batch
	bc.OutputDir = out
	bc.WorkerCount = 2
	return NewPipeline(anon, loader, bc, logger.NewNop())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestPipelineRun(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "anon")

	writeFile(t, filepath.Join(in, "whatsapp.txt"),
		"12.03.2024, 21:15 - Maria: mail me at maria@example.com\n12.03.2024, 21:16 - Boris: ok")
	writeFile(t, filepath.Join(in, "2024", "messages.html"),
		`<div class="from_name">Иван</div><div class="text">+7 (999) 123-45-67</div>`)
	writeFile(t, filepath.Join(in, "notes.pdf"), "ignored")
	require.NoError(t, os.WriteFile(filepath.Join(in, "export.zip"), zipBytes(t, map[string]string{
		"messages.html": `<div class="from_name">Мария</div>`,
	}), 0o600))

	result, err := newPipeline(t, out).Run(context.Background(), []string{in})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.TotalFiles)
	assert.Equal(t, int64(3), result.ProcessedOK)
	assert.Empty(t, result.Errors)

	byFile := map[string]FileReport{}
	for _, r := range result.Reports {
		byFile[r.File] = r
	}

	wa := byFile["whatsapp.txt"]
	assert.Equal(t, int64(2), wa.Participants)
	assert.Equal(t, int64(1), wa.Emails)
	assert.Equal(t, "whatsapp.txt.anon.txt", wa.Output)

	data, err := os.ReadFile(filepath.Join(out, wa.Output))
	require.NoError(t, err)
	assert.Contains(t, string(data), "USER_1: mail me at [EMAIL]")
	assert.NotContains(t, string(data), "Maria")

	tg := byFile[filepath.Join("2024", "messages.html")]
	assert.Equal(t, int64(1), tg.Phones)
	assert.Equal(t, "2024_messages.html.anon.txt", tg.Output)

	// each conversation numbers its participants from 1
	archived, err := os.ReadFile(filepath.Join(out, "export.zip.anon.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(archived), `<div class="from_name">USER_1</div>`)

	summary, err := ReadSummary(result.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, result.Reports, summary)
}

func TestPipelineSameNameInSeparateRoots(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	out := filepath.Join(t.TempDir(), "anon")
	writeFile(t, filepath.Join(a, "chat.txt"), "12.03.2024, 21:15 - Maria: from A")
	writeFile(t, filepath.Join(b, "chat.txt"), "12.03.2024, 21:15 - Boris: from B")

	result, err := newPipeline(t, out).Run(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.ProcessedOK)

	outputs := make([]string, 0, len(result.Reports))
	for _, r := range result.Reports {
		outputs = append(outputs, r.Output)
	}
	assert.ElementsMatch(t, []string{"chat.txt.anon.txt", "chat.txt-2.anon.txt"}, outputs)

	first, err := os.ReadFile(filepath.Join(out, "chat.txt.anon.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "USER_1: from A")

	second, err := os.ReadFile(filepath.Join(out, "chat.txt-2.anon.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "USER_1: from B")
}

func TestAssignOutputs(t *testing.T) {
	jobs := []job{
		{name: "chat.txt"},
		{name: filepath.Join("a", "b.txt")},
		{name: "a_b.txt"},
		{name: "CHAT.txt"},
		{name: "chat.txt"},
	}

	assignOutputs(jobs)

	assert.Equal(t, []string{
		"chat.txt.anon.txt",
		"a_b.txt.anon.txt",
		"a_b.txt-2.anon.txt",
		"CHAT.txt-2.anon.txt",
		"chat.txt-3.anon.txt",
	}, lo.Map(jobs, func(j job, _ int) string { return j.output }))
}

func TestPipelineCollectsFailures(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "ok.txt"), "hello")
	writeFile(t, filepath.Join(in, "broken.zip"), "not a zip")

	result, err := newPipeline(t, t.TempDir()).Run(context.Background(), []string{in})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.ProcessedOK)
	assert.Equal(t, int64(1), result.ProcessedFailed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken.zip")
}

func TestPipelineNoSupportedFiles(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "image.png"), "x")

	_, err := newPipeline(t, t.TempDir()).Run(context.Background(), []string{in})
	assert.ErrorIs(t, err, ingest.ErrNoSupportedFiles)
}

func TestPipelineMissingInput(t *testing.T) {
	_, err := newPipeline(t, t.TempDir()).Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestPipelineCanceled(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.txt"), "hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t, t.TempDir()).Run(ctx, []string{in})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "chat.txt.anon.txt", OutputName("chat.txt"))
	assert.Equal(t, "a_b_c.html.anon.txt", OutputName(filepath.Join("a", "b", "c.html")))
}
