package rephrase

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

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Host: srv.URL, Model: "llama3", Timeout: 2 * time.Second})
}

func TestGenerate(t *testing.T) {
	var got GenerateRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"model":"llama3","response":"  a shiny red apple \n","done":true}`))
	})

	text, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "a shiny red apple" {
		t.Errorf("Expected trimmed response, got %q", text)
	}
	if got.Model != "llama3" || got.Prompt != "hello" || got.Stream {
		t.Errorf("Unexpected request body %+v", got)
	}
}

func TestRephrase_UsesTemplate(t *testing.T) {
	var prompt string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		w.Write([]byte(`{"response":"ok"}`))
	})

	if _, err := c.Rephrase(context.Background(), "red hair, 1girl"); err != nil {
		t.Fatalf("Rephrase failed: %v", err)
	}
	if !strings.Contains(prompt, "red hair, 1girl") || strings.Contains(prompt, "{description}") {
		t.Errorf("Template not filled: %q", prompt)
	}
}

func TestBuildPrompt(t *testing.T) {
	if got := BuildPrompt("Say: {description}!", "hi"); got != "Say: hi!" {
		t.Errorf("Unexpected prompt %q", got)
	}
	if got := BuildPrompt("Rewrite", "hi"); got != "Rewrite\n\nhi" {
		t.Errorf("Unexpected prompt %q", got)
	}
}

func TestListModels(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/api/tags" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3:latest","size":4000},{"name":"mistral"}]}`))
	})

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 || models[0].Name != "llama3:latest" {
		t.Errorf("Unexpected models %+v", models)
	}
}

func TestErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		})
		_, err := c.Generate(context.Background(), "x")
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			t.Fatalf("Expected StatusError 404, got %v", err)
		}
		if !IsServiceError(err) {
			t.Error("StatusError should count as a service error")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		c := New(Config{Host: srv.URL, Timeout: 50 * time.Millisecond})
		_, err := c.Generate(context.Background(), "x")
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("Expected ErrTimeout, got %v", err)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := New(Config{Host: url, Timeout: time.Second})
		_, err := c.ListModels(context.Background())
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("Expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"response":"   "}`))
		})
		if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("Expected ErrEmptyResponse, got %v", err)
		}
	})
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	if c.BaseURL() != "http://localhost:11434" {
		t.Errorf("Unexpected base URL %s", c.BaseURL())
	}
	c = New(Config{Host: "gpu-box", Port: 8080})
	if c.BaseURL() != "http://gpu-box:8080" {
		t.Errorf("Unexpected base URL %s", c.BaseURL())
	}
}
