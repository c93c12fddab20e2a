package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/notegram/internal/classifier"
	"github.com/xaenox/notegram/internal/models"
	"github.com/xaenox/notegram/internal/plan"
	"github.com/xaenox/notegram/internal/publisher"
	"github.com/xaenox/notegram/internal/storage"
	"github.com/xaenox/notegram/internal/vault"
	"github.com/xaenox/notegram/pkg/config"
)

// telegramStub answers getMe and records the methods of every other call.
type telegramStub struct {
	mu      sync.Mutex
	methods []string
	chats   []string
}

func (s *telegramStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if method == "getMe" {
		io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Test","username":"test_bot"}}`)
		return
	}

	r.ParseMultipartForm(10 << 20)
	chat := r.FormValue("chat_id")

	s.mu.Lock()
	s.methods = append(s.methods, method)
	s.chats = append(s.chats, chat)
	s.mu.Unlock()

	if chat == "broken" {
		io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
		return
	}
	io.WriteString(w, `{"ok":true,"result":{}}`)
}

func (s *telegramStub) calls() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...), append([]string(nil), s.chats...)
}

type env struct {
	dir    string
	config string
	api    *telegramStub
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "")

	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")
	files := map[string]string{
		"trip.md":      "---\ntags: [travel]\n---\n# Lisbon\n\nGreat **trip**!\n\n![[beach.png]]\n![[tram.jpg]]\n",
		"beach.png":    "PNG",
		"img/tram.jpg": "JPG",
		"plain.md":     "Just text.",
		"report.md":    "See ![[missing.pdf]]",
	}
	for name, content := range files {
		full := filepath.Join(vaultDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	api := &telegramStub{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	configPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`vault:
  path: %q
presets:
  backend: file
  file: %q
telegram:
  api_endpoint: %q
log:
  level: error
`, vaultDir, filepath.Join(dir, "presets.yaml"), srv.URL+"/bot%s/%s")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	return &env{dir: dir, config: configPath, api: api}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPresetsCommands(t *testing.T) {
	e := setupEnv(t)

	out, err := e.run(t, "presets", "list")
	require.NoError(t, err)
	assert.Equal(t, "No destinations saved\n", out)

	out, err = e.run(t, "presets", "add", "--id", "news", "--name", "News", "--token", "1:a", "--chat", "@news", "--default")
	require.NoError(t, err)
	assert.Equal(t, "Saved destination News (news)\n", out)

	_, err = e.run(t, "presets", "add", "--id", "backup", "--token", "1:a", "--chat", "-100")
	require.NoError(t, err)

	_, err = e.run(t, "presets", "add", "--name", "No chat", "--token", "1:a")
	assert.ErrorContains(t, err, "both --token and --chat are required")

	_, err = e.run(t, "presets", "default", "backup")
	require.NoError(t, err)

	out, err = e.run(t, "presets", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "NAME", "CHAT", "DEFAULT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"news", "News", "@news"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"backup", "-100", "*"}, strings.Fields(lines[2]))

	_, err = e.run(t, "presets", "remove", "news")
	require.NoError(t, err)
	_, err = e.run(t, "presets", "remove", "news")
	assert.ErrorIs(t, err, storage.ErrPresetNotFound)
	_, err = e.run(t, "presets", "default", "news")
	assert.ErrorIs(t, err, storage.ErrPresetNotFound)
}

func TestPresetsAdd_PartialUpdate(t *testing.T) {
	e := setupEnv(t)
	_, err := e.run(t, "presets", "add", "--id", "news", "--name", "News", "--token", "1:a", "--chat", "@news", "--default")
	require.NoError(t, err)

	out, err := e.run(t, "presets", "add", "--id", "news", "--chat", "@daily")
	require.NoError(t, err)
	assert.Equal(t, "Saved destination News (news)\n", out)

	out, err = e.run(t, "presets", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"news", "News", "@daily", "*"}, strings.Fields(lines[1]))

	out, err = e.run(t, "publish", "plain.md")
	require.NoError(t, err)
	assert.Equal(t, "Published to News ✅\n", out)
	_, chats := e.api.calls()
	assert.Equal(t, []string{"@daily"}, chats)

	_, err = e.run(t, "presets", "add", "--id", "fresh", "--chat", "@fresh")
	assert.ErrorContains(t, err, "both --token and --chat are required")
}

func TestPublishCommand(t *testing.T) {
	e := setupEnv(t)
	_, err := e.run(t, "presets", "add", "--id", "a", "--name", "A", "--token", "1:a", "--chat", "chat-a", "--default")
	require.NoError(t, err)
	_, err = e.run(t, "presets", "add", "--id", "b", "--name", "B", "--token", "1:a", "--chat", "broken")
	require.NoError(t, err)
	_, err = e.run(t, "presets", "add", "--id", "c", "--name", "C", "--token", "2:b", "--chat", "chat-c")
	require.NoError(t, err)

	out, err := e.run(t, "publish", "trip.md")
	require.NoError(t, err)
	assert.Equal(t, "Published to A ✅\n", out)

	out, err = e.run(t, "publish", "plain.md", "--preset", "b", "--preset", "c", "--silent")
	assert.ErrorContains(t, err, "1 of 2 destinations failed")
	assert.Equal(t, "Send error (B): Bad Request: chat not found\nPublished to C ✅\n", out)

	methods, chats := e.api.calls()
	assert.Equal(t, []string{"sendMediaGroup", "sendMessage", "sendMessage"}, methods)
	assert.Equal(t, []string{"chat-a", "broken", "chat-c"}, chats)

	_, err = e.run(t, "publish", "plain.md", "--preset", "zzz")
	var ce *models.ConfigurationError
	assert.ErrorAs(t, err, &ce)

	_, err = e.run(t, "publish", "plain.md", "--all", "--preset", "a")
	assert.ErrorContains(t, err, "--all cannot be combined")
}

func TestPreviewCommand(t *testing.T) {
	e := setupEnv(t)

	out, err := e.run(t, "preview", "trip.md", "--caption-above")
	require.NoError(t, err)
	assert.Equal(t, "*Lisbon*\n\nGreat *trip*\\!\n---\n2 photos, 0 documents\n1. photo group of 2 with caption, caption above\n", out)

	_, err = e.run(t, "preview", "nope.md")
	assert.ErrorContains(t, err, "file not found")

	methods, _ := e.api.calls()
	assert.Empty(t, methods)
}

func TestSelection(t *testing.T) {
	sel, err := selection(nil, false)
	require.NoError(t, err)
	assert.Equal(t, publisher.SelectDefault(), sel)

	sel, err = selection([]string{"a", "b"}, false)
	require.NoError(t, err)
	assert.Equal(t, publisher.SelectIDs("a", "b"), sel)

	sel, err = selection(nil, true)
	require.NoError(t, err)
	assert.Equal(t, publisher.SelectAll(), sel)

	_, err = selection([]string{"a"}, true)
	assert.Error(t, err)
}

type recordingTransport struct {
	ops []plan.Operation
}

func (r *recordingTransport) Send(ctx context.Context, creds models.Credentials, op plan.Operation, files []models.FileData) error {
	if creds.ChatID == "broken" {
		return &models.TransportError{Code: 403, Description: "Forbidden: bot was blocked"}
	}
	r.ops = append(r.ops, op)
	return nil
}

func newHandlers(t *testing.T) (*toolHandlers, *recordingTransport) {
	t.Helper()
	e := setupEnv(t)
	v, err := vault.New(filepath.Join(e.dir, "vault"), nil)
	require.NoError(t, err)

	store := storage.NewMemoryStorage(
		models.Preset{ID: "a", Name: "A", Credentials: models.Credentials{BotToken: "t", ChatID: "1"}, IsDefault: true},
		models.Preset{ID: "b", Name: "B", Credentials: models.Credentials{BotToken: "t", ChatID: "broken"}},
	)
	transport := &recordingTransport{}
	p := publisher.New(v, store, classifier.New(nil, nil, nil), transport)

	return &toolHandlers{publisher: p, publishDefaults: config.PublishConfig{Silent: true}}, transport
}

func TestHandleDestinations(t *testing.T) {
	h, _ := newHandlers(t)

	res, out, err := h.handleDestinations(context.Background(), nil, DestinationsInput{})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []Destination{{ID: "a", Name: "A", IsDefault: true}, {ID: "b", Name: "B"}}, out.Destinations)
}

func TestHandlePreview(t *testing.T) {
	h, transport := newHandlers(t)
	silent := false

	_, out, err := h.handlePreview(context.Background(), nil, PreviewInput{Path: " trip.md ", Silent: &silent})
	require.NoError(t, err)
	assert.Equal(t, []string{"beach.png", "img/tram.jpg"}, out.Photos)
	assert.Empty(t, out.Documents)
	assert.Equal(t, "1. photo group of 2 with caption", out.Plan)
	assert.Empty(t, transport.ops)

	res, _, err := h.handlePreview(context.Background(), nil, PreviewInput{Path: "nope.md"})
	assert.Error(t, err)
	assert.True(t, res.IsError)
}

func TestHandlePublish(t *testing.T) {
	h, transport := newHandlers(t)

	res, out, err := h.handlePublish(context.Background(), nil, PublishInput{Path: "plain.md"})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []PublishResult{{Destination: "A", Planned: 1, Sent: 1}}, out.Results)
	require.Len(t, transport.ops, 1)
	assert.True(t, transport.ops[0].Flags().Silent)

	res, out, err = h.handlePublish(context.Background(), nil, PublishInput{Path: "plain.md", All: true})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, []PublishResult{
		{Destination: "A", Planned: 1, Sent: 1},
		{Destination: "B", Planned: 1, Error: "Forbidden: bot was blocked"},
	}, out.Results)

	res, _, err = h.handlePublish(context.Background(), nil, PublishInput{Path: "plain.md", Presets: []string{}, All: false})
	require.NoError(t, err)
	assert.Nil(t, res)

	res, _, err = h.handlePublish(context.Background(), nil, PublishInput{Path: "report.md", Presets: []string{"missing"}})
	assert.Error(t, err)
	assert.True(t, res.IsError)
}

func TestMetricsEndpoint(t *testing.T) {
	observer, handler, err := newMetrics()
	require.NoError(t, err)
	observer.RecordOperation(plan.TextMessage{Text: "x"}, time.Millisecond, nil)
	observer.RecordDestination(errors.New("boom"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `notegram_operations_total{kind="text",result="ok"} 1`)
	assert.Contains(t, body, `notegram_destinations_total{result="error"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
