package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanpawarit/construction-support-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/construction-support-assistant/agent/chat"
	promptx "github.com/tanpawarit/construction-support-assistant/agent/prompt"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
	statex "github.com/tanpawarit/construction-support-assistant/agent/state"
)

type echoOrchestrator struct{}

func (echoOrchestrator) Reply(_ context.Context, in orchestrator.TurnInput) orchestrator.TurnOutput {
	return orchestrator.TurnOutput{Reply: "echo: " + in.UserMessage}
}

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, records.UsersFile), `[{"userId":"U001","userName":"山田太郎","companyId":"C001","companyName":"山田建設"}]`)
	writeFile(t, filepath.Join(dir, records.MachineListFile), `[{"companyId":"C001","companyName":"山田建設","machines":[{"machineId":"M1","model":"PC200-8","serial":"500001"}]}]`)

	svc, err := chat.NewService(
		statex.NewMemoryStore(),
		records.NewFileRoster(dir),
		promptx.NewLoader(""),
		echoOrchestrator{},
		chat.Credentials{UserID: "test", Password: "test"},
	)
	require.NoError(t, err)

	srv, err := NewServer(svc, opts)
	require.NoError(t, err)
	return srv.Handler()
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func loginSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, out := do(t, h, http.MethodPost, "/api/login", `{"userId":"test","password":"test"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id, _ := out["sessionId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, Options{})

	loginSession(t, h)

	rec, out := do(t, h, http.MethodPost, "/api/login", `{"userId":"test","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", out["error"])

	for _, body := range []string{"", "{}", "not json", "[1,2]"} {
		rec, out = do(t, h, http.MethodPost, "/api/login", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, "No data", out["error"], "body %q", body)
	}
}

func TestUsersEndpoint(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, Options{})

	rec, out := do(t, h, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	users, ok := out["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 1)
	first := users[0].(map[string]any)
	assert.Equal(t, "U001", first["userId"])
	assert.EqualValues(t, 1, first["machineCount"])
}

func TestChatFlow(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, Options{})
	id := loginSession(t, h)

	rec, out := do(t, h, http.MethodPost, "/api/select-user", `{"sessionId":"`+id+`","userId":"U001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User U001 selected", out["message"])

	rec, out = do(t, h, http.MethodPost, "/api/chat", `{"sessionId":"`+id+`","message":"こんにちは"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: こんにちは", out["reply"])
	conversation, _ := out["conversation"].([]any)
	require.Len(t, conversation, 2)
	assert.Equal(t, "user", conversation[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", conversation[1].(map[string]any)["role"])

	rec, out = do(t, h, http.MethodPost, "/api/chat/reset", `{"sessionId":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chat history reset.", out["message"])

	rec, out = do(t, h, http.MethodPost, "/api/chat/finish", `{"sessionId":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chat finished", out["message"])

	rec, out = do(t, h, http.MethodPost, "/api/chat", `{"sessionId":"`+id+`","message":"again"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not logged in", out["error"])
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, Options{})
	id := loginSession(t, h)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		errMsg string
	}{
		{"select missing user id", "/api/select-user", `{"sessionId":"` + id + `"}`, http.StatusBadRequest, "sessionId and userId required"},
		{"select not logged in", "/api/select-user", `{"sessionId":"other","userId":"U001"}`, http.StatusUnauthorized, "Not logged in"},
		{"select unknown user", "/api/select-user", `{"sessionId":"` + id + `","userId":"U999"}`, http.StatusNotFound, "User not found"},
		{"chat missing session", "/api/chat", `{"message":"hi"}`, http.StatusBadRequest, "sessionId required"},
		{"chat empty body", "/api/chat", ``, http.StatusBadRequest, "No data"},
		{"reset not logged in", "/api/chat/reset", `{"sessionId":"other"}`, http.StatusUnauthorized, "Not logged in"},
		{"reset without session", "/api/chat/reset", `{"foo":1}`, http.StatusUnauthorized, "Not logged in"},
		{"finish empty body", "/api/chat/finish", ``, http.StatusBadRequest, "No data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.errMsg, out["error"])
		})
	}
}

func TestFinishUnknownSessionSucceeds(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, Options{})

	rec, out := do(t, h, http.MethodPost, "/api/chat/finish", `{"sessionId":"never-existed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chat finished", out["message"])
}

func TestCORSAndHealth(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, Options{})

	rec, _ := do(t, h, http.MethodOptions, "/api/chat", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, out := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, _ = do(t, h, http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStaticFallsBackToIndex(t *testing.T) {
	t.Parallel()

	static := t.TempDir()
	writeFile(t, filepath.Join(static, "index.html"), "<html>app</html>")
	writeFile(t, filepath.Join(static, "app.js"), "console.log(1)")
	h := newTestServer(t, Options{StaticDir: static})

	rec, _ := do(t, h, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")

	rec, _ = do(t, h, http.MethodGet, "/chat/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html>app</html>")

	rec, out := do(t, h, http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, out, "users")
}

func TestNewServerRequiresBackend(t *testing.T) {
	t.Parallel()
	_, err := NewServer(nil, Options{})
	assert.Error(t, err)
}
