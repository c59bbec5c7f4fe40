package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type staticSettings struct {
	endpoint string
	model    string
}

func (s staticSettings) OnlineAgentEndpoint() string { return s.endpoint }
func (s staticSettings) AgentModelName() string      { return s.model }

func TestGenerateSendsWireContract(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  أهلاً بيك  "}`))
	}))
	defer srv.Close()

	c := NewClient(staticSettings{endpoint: srv.URL + "/", model: "qwen"}, time.Second, nil, nil)
	reply, err := c.Generate(context.Background(), "إزيك")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "أهلاً بيك" {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "qwen" || got.Stream {
		t.Fatalf("request = %+v", got)
	}
	if got.Options.Temperature != 0.6 || got.Options.NumPredict != 120 {
		t.Fatalf("options = %+v", got.Options)
	}
	if !strings.HasPrefix(got.Prompt, Persona) || !strings.HasSuffix(got.Prompt, "المستخدم قال: 'إزيك'\nرد باللهجة المصرية:") {
		t.Fatalf("prompt = %q", got.Prompt)
	}
}

func TestGenerateDefaultsModel(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(staticSettings{endpoint: srv.URL}, time.Second, nil, nil)
	if _, err := c.Generate(context.Background(), "x"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Model != DefaultModel {
		t.Fatalf("model = %q, want %q", got.Model, DefaultModel)
	}
}

func TestGenerateFallsBackToRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("\n حاضر \n"))
	}))
	defer srv.Close()

	c := NewClient(staticSettings{endpoint: srv.URL}, time.Second, nil, nil)
	reply, err := c.Generate(context.Background(), "x")
	if err != nil || reply != "حاضر" {
		t.Fatalf("Generate() = %q, %v", reply, err)
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	c := NewClient(staticSettings{}, time.Second, nil, nil)
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Generate() error = %v, want ErrNotConfigured", err)
	}
}

func TestGenerateTimeoutSurfacesTimeoutKind(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(staticSettings{endpoint: srv.URL}, 50*time.Millisecond, nil, nil)
	_, err := c.Generate(context.Background(), "x")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Generate() error = %v, want ErrTimeout", err)
	}
}

func TestGenerateNon2xxIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(staticSettings{endpoint: srv.URL}, time.Second, nil, nil)
	_, err := c.Generate(context.Background(), "x")
	var agentErr *Error
	if !errors.As(err, &agentErr) {
		t.Fatalf("Generate() error = %v, want *Error", err)
	}
	if agentErr.Kind != KindProtocol || agentErr.StatusCode != 503 || !agentErr.Retryable {
		t.Fatalf("error = %+v", agentErr)
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("protocol error matched ErrTimeout")
	}
}

func TestGenerateUnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(staticSettings{endpoint: url}, time.Second, nil, nil)
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("Generate() error = %v, want ErrNetwork", err)
	}
}

func TestGenerateURL(t *testing.T) {
	for in, want := range map[string]string{
		"http://h:11434":   "http://h:11434/api/generate",
		"http://h:11434/":  "http://h:11434/api/generate",
		" http://h/base/ ": "http://h/base/api/generate",
	} {
		if got := GenerateURL(in); got != want {
			t.Fatalf("GenerateURL(%q) = %q, want %q", in, got, want)
		}
	}
}
