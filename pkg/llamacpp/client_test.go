package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, content any, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
}

func TestAnalyzeImage(t *testing.T) {
	srv := completionServer(t, `{"primary":{"label":"boat","confidence":0.7,"box":{"x":0.1,"y":0.5,"w":0.3,"h":0.2},"cx":0.25,"cy":0.6},"tags":["boat"]}`, http.StatusOK)
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.AnalyzeImage(context.Background(), "m", "locate", "aGVsbG8=")
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if result.Primary.Label != "boat" {
		t.Errorf("Expected boat, got %q", result.Primary.Label)
	}
}

func TestSimpleQueryContentParts(t *testing.T) {
	srv := completionServer(t, []any{map[string]any{"type": "text", "text": "A boat."}}, http.StatusOK)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	answer, err := c.SimpleQuery(context.Background(), "m", "what?", "")
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if answer != "A boat." {
		t.Errorf("Unexpected answer %q", answer)
	}
}

func TestServerError(t *testing.T) {
	srv := completionServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.SimpleQuery(context.Background(), "m", "what?", "")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("")
	if err != nil || c.baseURL != DefaultURL {
		t.Errorf("Expected default URL, got %v %v", c, err)
	}
	if _, err := NewClient("localhost:8080"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}
