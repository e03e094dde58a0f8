package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"open-rewrite/src/settings"
)

type chatBody struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionJSON(content string) string {
	b, _ := json.Marshal(content)
	return `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` + string(b) + `}}]}`
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func testRequest(baseURL string) Request {
	return Request{
		Model:         settings.ModelConfig{APIKey: "sk-test-1234567890", BaseURL: baseURL, Name: "gpt-4o-mini"},
		SystemMessage: "system text",
		Instruction:   "Make it polite.",
		Input:         "give me the file",
	}
}

func TestCompleteSendsExpectedPayload(t *testing.T) {
	var got chatBody
	var auth, path string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("Could you share the file?")))
	})

	text, err := NewClient().Complete(context.Background(), testRequest(srv.URL+"/v1"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Could you share the file?" {
		t.Fatalf("unexpected text %q", text)
	}
	if path != "/v1/chat/completions" {
		t.Errorf("unexpected path %q", path)
	}
	if auth != "Bearer sk-test-1234567890" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if got.Model != "gpt-4o-mini" || got.Temperature != Temperature {
		t.Errorf("unexpected model/temperature: %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "system text" {
		t.Errorf("unexpected system message %+v", got.Messages[0])
	}
	want := "<prompt>Make it polite.</prompt>\n<text>give me the file</text>"
	if got.Messages[1].Role != "user" || got.Messages[1].Content != want {
		t.Errorf("unexpected user message %+v", got.Messages[1])
	}
}

func TestCompleteErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, ErrAuthentication},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"nope"}}`, ErrAuthentication},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, ErrAPI},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, ErrMalformedResponse},
		{"empty content", http.StatusOK, completionJSON("   "), ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := NewClient().Complete(context.Background(), testRequest(srv.URL))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if n := calls.Load(); n != 1 {
				t.Fatalf("expected exactly one attempt, got %d", n)
			}
		})
	}
}

func TestCompleteMissingKeyMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	req := testRequest(srv.URL)
	req.Model.APIKey = " "

	_, err := NewClient().Complete(context.Background(), req)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("expected no network call without an API key")
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := NewClient(WithTimeout(50*time.Millisecond)).Complete(context.Background(), testRequest(srv.URL))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestCompleteCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := NewClient().Complete(ctx, testRequest(srv.URL))
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestCompleteNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient().Complete(context.Background(), testRequest(url))
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if KindOf(err) != KindNetwork {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
}

func TestPing(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model","created":1,"owned_by":"x"}]}`))
	})
	cfg := testRequest(srv.URL).Model
	if err := NewClient().Ping(context.Background(), cfg); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	cfg.APIKey = ""
	if err := NewClient().Ping(context.Background(), cfg); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestErrorIsMatchesKindOnly(t *testing.T) {
	err := &Error{Kind: KindTimeout, Err: context.DeadlineExceeded}
	if !errors.Is(err, ErrTimeout) {
		t.Fatal("expected kind match")
	}
	if errors.Is(err, ErrNetwork) {
		t.Fatal("unexpected match across kinds")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected wrapped cause to match")
	}
}
