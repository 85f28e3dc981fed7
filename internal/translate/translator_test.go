package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/recall/internal/ollama"
)

func generateServer(t *testing.T, response string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Model   string `json:"model"`
			Prompt  string `json:"prompt"`
			Stream  bool   `json:"stream"`
			Options struct {
				Temperature float64 `json:"temperature"`
			} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != DefaultModel || payload.Stream || payload.Options.Temperature != 0 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		if !strings.Contains(payload.Prompt, "English only") {
			t.Errorf("prompt missing instruction: %q", payload.Prompt)
		}
		if status != http.StatusOK {
			http.Error(w, "failure", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPassthrough(t *testing.T) {
	got, err := Passthrough{}.Translate(context.Background(), "sopa de tomate")
	if err != nil || got != "sopa de tomate" {
		t.Fatalf("Passthrough = %q, %v", got, err)
	}
}

func TestOllamaTranslator(t *testing.T) {
	server := generateServer(t, "  tomato soup \n", http.StatusOK)
	tr := NewOllamaTranslator(ollama.New(server.URL), OllamaOptions{}, nil)

	got, err := tr.Translate(context.Background(), "sopa de tomate")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "tomato soup" {
		t.Errorf("Translate() = %q, want %q", got, "tomato soup")
	}
}

func TestOllamaTranslatorBlankInput(t *testing.T) {
	tr := NewOllamaTranslator(ollama.New("http://127.0.0.1:1"), OllamaOptions{}, nil)
	got, err := tr.Translate(context.Background(), "   ")
	if err != nil || got != "   " {
		t.Fatalf("Translate(blank) = %q, %v", got, err)
	}
}

func TestOllamaTranslatorEmptyResponse(t *testing.T) {
	server := generateServer(t, "   ", http.StatusOK)
	tr := NewOllamaTranslator(ollama.New(server.URL), OllamaOptions{}, nil)
	if _, err := tr.Translate(context.Background(), "hola"); !errors.Is(err, ErrEmptyTranslation) {
		t.Fatalf("expected ErrEmptyTranslation, got %v", err)
	}
}

func TestOllamaTranslatorWordLimit(t *testing.T) {
	server := generateServer(t, "one two three four", http.StatusOK)
	tr := NewOllamaTranslator(ollama.New(server.URL), OllamaOptions{MaxWords: 3}, nil)
	if _, err := tr.Translate(context.Background(), "uno dos tres cuatro"); !errors.Is(err, ErrTranslationTooLong) {
		t.Fatalf("expected ErrTranslationTooLong, got %v", err)
	}
}

func TestOllamaTranslatorHTTPError(t *testing.T) {
	server := generateServer(t, "", http.StatusBadRequest)
	tr := NewOllamaTranslator(ollama.New(server.URL), OllamaOptions{}, nil)
	_, err := tr.Translate(context.Background(), "hola")
	if err == nil || !strings.Contains(err.Error(), "translate") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
