package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/localchat/internal/profile"
	storetest "github.com/hrygo/localchat/store/test"
)

// completionServer answers like an OpenAI-compatible server with echo enabled.
type completionServer struct {
	mu      sync.Mutex
	prompts []string
}

func (c *completionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	c.mu.Lock()
	c.prompts = append(c.prompts, body.Prompt)
	c.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "cmpl-test",
		"object":  "text_completion",
		"choices": []map[string]any{{"text": body.Prompt + " Bonjour **toi** !", "index": 0}},
	})
}

func testProfile(t *testing.T, baseURL string) *profile.Profile {
	t.Helper()
	return &profile.Profile{
		Mode:                     "dev",
		Data:                     t.TempDir(),
		Driver:                   "memory",
		SecretKey:                "test-secret",
		ModelName:                "croissantllm/CroissantLLMChat-v0.1",
		ModelsDir:                t.TempDir(),
		Device:                   "cpu",
		MaxHistoryLength:         5,
		MaxInputTokenBudget:      384,
		UserLabel:                "Human",
		AssistantLabel:           "Assistant",
		Tokenizer:                "estimate",
		MaxLength:                512,
		MinLength:                20,
		Temperature:              0.7,
		TopP:                     0.9,
		InferenceBackend:         "openai",
		InferenceBaseURL:         baseURL,
		InferenceTimeout:         10 * time.Second,
		MaxConcurrentGenerations: 1,
		SessionTTL:               time.Hour,
	}
}

type client struct {
	handler http.Handler
	cookies []*http.Cookie
}

func (c *client) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		c.cookies = cookies
	}
	return rec
}

func newTestServer(t *testing.T, mutate func(*profile.Profile)) (*Server, *completionServer) {
	t.Helper()
	backend := &completionServer{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	p := testProfile(t, srv.URL+"/v1")
	if mutate != nil {
		mutate(p)
	}

	ctx := context.Background()
	var s *Server
	var err error
	if p.Driver == "memory" {
		s, err = NewServer(ctx, p, nil)
	} else {
		s, err = NewServer(ctx, p, storetest.NewTestingStore(ctx, t))
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, backend
}

func TestServer_Healthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := &client{handler: s.Handler()}

	rec := c.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "croissantllm/CroissantLLMChat-v0.1", body["model"])
	assert.Equal(t, "openai", body["backend"])
}

func TestServer_Index(t *testing.T) {
	s, _ := newTestServer(t, nil)
	c := &client{handler: s.Handler()}

	rec := c.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "croissantllm/CroissantLLMChat-v0.1")
}

func TestServer_Conversation(t *testing.T) {
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			s, backend := newTestServer(t, func(p *profile.Profile) { p.Driver = driver })
			c := &client{handler: s.Handler()}

			rec := c.do(t, http.MethodPost, "/chat", `{"message":"Salut"}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var reply struct {
				Response     string `json:"response"`
				ResponseHTML string `json:"response_html"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
			assert.Equal(t, "Bonjour **toi** !", reply.Response)
			assert.Contains(t, reply.ResponseHTML, "<strong>toi</strong>")

			rec = c.do(t, http.MethodPost, "/chat", `{"message":"Ça va ?"}`)
			require.Equal(t, http.StatusOK, rec.Code)

			require.Len(t, backend.prompts, 2)
			assert.Equal(t, "Human: Salut\nAssistant:", backend.prompts[0])
			assert.Equal(t, "Human: Salut\nAssistant: Bonjour **toi** !\nHuman: Ça va ?\nAssistant:", backend.prompts[1])

			// A client without the cookie starts a fresh conversation.
			other := &client{handler: s.Handler()}
			rec = other.do(t, http.MethodGet, "/api/v1/history", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"turns":[]`)

			rec = c.do(t, http.MethodGet, "/api/v1/system/metrics/overview", "")
			require.Equal(t, http.StatusOK, rec.Code)
			var overview struct {
				TotalRequests int64 `json:"total_requests"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
			assert.GreaterOrEqual(t, overview.TotalRequests, int64(2))
		})
	}
}

func TestServer_InvalidConfig(t *testing.T) {
	p := testProfile(t, "")
	_, err := NewServer(context.Background(), p, nil)
	assert.Error(t, err)
}
