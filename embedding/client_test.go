package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidemind/tidemind/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.EmbeddingConfig{
		APIKey:     "test-key",
		APIBase:    srv.URL,
		Model:      "text-embedding-v3",
		Dimensions: 4,
	})
}

func TestEmbed_Success(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{0.1, 0.2, 0.3, 0.4}},
			},
		})
	})

	vec, err := c.Embed(context.Background(), "User has a dog named Rex")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 4 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/embeddings" {
		t.Errorf("path = %q, want /embeddings", gotPath)
	}
	if gotBody["model"] != "text-embedding-v3" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["input"] != "User has a dog named Rex" {
		t.Errorf("input = %v", gotBody["input"])
	}
}

func TestEmbed_MissingAPIKey(t *testing.T) {
	c := NewClient(config.EmbeddingConfig{Model: "text-embedding-v3"})
	if _, err := c.Embed(context.Background(), "hello"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestEmbed_NonOKStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	})
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestEmbed_MalformedResponse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on malformed response")
	}
}

func TestEmbed_EmptyData(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when no vectors returned")
	}
}
