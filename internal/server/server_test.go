package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/jxucoder/codehelper/internal/auth"
	"github.com/jxucoder/codehelper/internal/helper"
	"github.com/jxucoder/codehelper/pkg/dispatcher"
	"github.com/jxucoder/codehelper/pkg/llm"
	"github.com/jxucoder/codehelper/pkg/store/sqlstore"
)

// fakeLLM records the prompt and returns a canned answer.
type fakeLLM struct {
	text   string
	err    error
	block  bool
	prompt llm.Prompt
}

func (f *fakeLLM) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	f.prompt = p
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

type testEnv struct {
	srv   *Server
	llm   *fakeLLM
	store *sqlstore.Store
}

func newTestEnv(t *testing.T, opts Options, helperOpts ...helper.Option) *testEnv {
	t.Helper()
	st, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fake := &fakeLLM{text: "answer"}
	runner := helper.New(dispatcher.New(dispatcher.WithMaxCodeBytes(1024)), fake, helperOpts...)
	srv := New(runner, auth.NewService(st, bcrypt.MinCost), st, zaptest.NewLogger(t), opts)
	return &testEnv{srv: srv, llm: fake, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	}
	return rec, out
}

// ---------------------------------------------------------------------------
// Health / routing
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.srv.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	rec, body := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "AI Code Helper backend running", body["message"])
	assert.Equal(t, "2025-01-02T03:04:05Z", body["time"])
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/api/code-helper"},
		{http.MethodPost, "/api/health"},
	} {
		rec, body := env.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Route not found", body["message"])
	}
}

func TestRecoverer(t *testing.T) {
	env := newTestEnv(t, Options{})
	h := env.srv.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, rec.Body.String())
}

// ---------------------------------------------------------------------------
// Code helper
// ---------------------------------------------------------------------------

func TestCodeHelper_Success(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.llm.text = "Here is the corrected code"

	rec, body := env.do(t, http.MethodPost, "/api/code-helper",
		`{"taskType":"fix","code":"print(x","language":"python"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "fix", body["taskType"])
	assert.Equal(t, "Here is the corrected code", body["result"])
	assert.Contains(t, env.llm.prompt.User, "Fix errors in this python code")
}

func TestCodeHelper_ValidationErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing both", `{}`, "Fields 'taskType' and 'code' are required"},
		{"empty body", ``, "Fields 'taskType' and 'code' are required"},
		{"missing code", `{"taskType":"fix"}`, "Field 'code' is required"},
		{"unsupported", `{"taskType":"summarize","code":"x"}`, `Invalid task type: "summarize"`},
		{"too large", `{"taskType":"fix","code":"` + strings.Repeat("x", 2000) + `"}`, "Code is too large (2000 bytes, limit 1024)"},
		{"malformed", `{"taskType":`, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/code-helper", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.msg, body["message"])
		})
	}
}

func TestCodeHelper_ProviderError(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.llm.err = &llm.Error{Provider: "groq", Kind: llm.KindRateLimit, StatusCode: 429, Message: "slow down"}

	rec, body := env.do(t, http.MethodPost, "/api/code-helper", `{"taskType":"explain","code":"x := 1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "AI provider error", body["message"])
	assert.Contains(t, body["error"], "slow down")
}

func TestCodeHelper_Timeout(t *testing.T) {
	env := newTestEnv(t, Options{}, helper.WithTimeout(50*time.Millisecond))
	env.llm.block = true

	start := time.Now()
	rec, body := env.do(t, http.MethodPost, "/api/code-helper", `{"taskType":"document","code":"func f() {}"}`)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "timeout")
	assert.Nil(t, body["result"])
}

func TestCodeHelper_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, Options{MaxBodyBytes: 64})

	rec, body := env.do(t, http.MethodPost, "/api/code-helper",
		`{"taskType":"fix","code":"`+strings.Repeat("y", 200)+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", body["message"])
}

func TestCodeHelper_RateLimited(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: 0.001, RateBurst: 2})
	payload := `{"taskType":"fix","code":"x"}`

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodPost, "/api/code-helper", payload)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := env.do(t, http.MethodPost, "/api/code-helper", payload)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Other routes are not limited.
	rec, _ = env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestSignupLogin(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec, body := env.do(t, http.MethodPost, "/auth/signup",
		`{"name":"Ada","email":"ada@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Account created successfully!", body["message"])

	rec, body = env.do(t, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Login successful!", body["message"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotEmpty(t, user["id"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestSignup_DuplicateKeepsCount(t *testing.T) {
	env := newTestEnv(t, Options{})
	payload := `{"name":"Ada","email":"ada@example.com","password":"pw"}`

	rec, _ := env.do(t, http.MethodPost, "/auth/signup", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	before, err := env.store.Count(context.Background())
	require.NoError(t, err)

	rec, body := env.do(t, http.MethodPost, "/auth/signup", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Email already exists!", body["message"])

	after, err := env.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"pw"}`)

	rec, body := env.do(t, http.MethodPost, "/auth/login", `{"email":"bob@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Invalid email!", body["message"])

	rec, body = env.do(t, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Incorrect password!", body["message"])
	assert.Equal(t, false, body["success"])
}

func TestSignup_PasswordTooLong(t *testing.T) {
	payload := `{"name":"a","email":"a@b.c","password":"` + strings.Repeat("a", 80) + `"}`

	env := newTestEnv(t, Options{})
	rec, body := env.do(t, http.MethodPost, "/auth/signup", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Password is too long!", body["message"])

	strict := newTestEnv(t, Options{StrictAuthStatus: true})
	rec, body = strict.do(t, http.MethodPost, "/auth/signup", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password is too long!", body["message"])
}

func TestSignup_EmptyBody(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec, body := env.do(t, http.MethodPost, "/auth/signup", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Email and password are required!", body["message"])
}

func TestAuth_StrictStatuses(t *testing.T) {
	env := newTestEnv(t, Options{StrictAuthStatus: true})
	payload := `{"name":"Ada","email":"ada@example.com","password":"pw"}`

	rec, _ := env.do(t, http.MethodPost, "/auth/signup", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/auth/signup", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/auth/login", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

func TestItems(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec, body := env.do(t, http.MethodGet, "/api/items", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, []any{}, body["data"])

	rec, body = env.do(t, http.MethodPost, "/api/items", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name required", body["message"])

	rec, body = env.do(t, http.MethodPost, "/api/items", `{"name":"learn chi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	data := body["data"].(map[string]any)
	id := int(data["id"].(float64))
	assert.Equal(t, "learn chi", data["name"])
	assert.Equal(t, false, data["completed"])

	path := "/api/items/" + strconv.Itoa(id)
	rec, body = env.do(t, http.MethodPut, path, `{"completed":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, true, data["completed"])
	assert.Equal(t, "learn chi", data["name"])

	_, body = env.do(t, http.MethodGet, "/api/items", "")
	assert.EqualValues(t, 1, body["count"])

	rec, body = env.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Deleted", body["message"])

	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		rec, body = env.do(t, method, path, `{}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Item not found", body["message"])
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/items/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
