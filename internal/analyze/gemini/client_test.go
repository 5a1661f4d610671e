package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig(endpoint string) Config {
	cfg := DefaultConfig("test-key", "gemini-2.0-flash")
	cfg.Endpoint = endpoint + "/models/{model}:generateContent"
	cfg.Timeout = 2 * time.Second
	cfg.RetryCount = 0
	return cfg
}

func TestClient_GenerateNarrative(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody generateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		resp := generateResponse{
			Candidates: []candidate{
				{Content: content{Parts: []part{{Text: "Summary line.\n- point one"}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	text, err := client.GenerateNarrative(context.Background(), "explain the burst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Summary line.\n- point one" {
		t.Errorf("unexpected text: %q", text)
	}

	// Model substituted into the endpoint, key sent as a header.
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("unexpected api key header: %q", gotAPIKey)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request shape: %+v", gotBody)
	}
	if gotBody.Contents[0].Role != "user" || gotBody.Contents[0].Parts[0].Text != "explain the burst" {
		t.Errorf("unexpected request content: %+v", gotBody.Contents[0])
	}
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.GenerateNarrative(context.Background(), "p")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_EmptyCandidatesIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.GenerateNarrative(context.Background(), "p")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestClient_RetriesTransportErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "transient", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []candidate{{Content: content{Parts: []part{{Text: "ok"}}}}},
		})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryCount = 1
	cfg.RetryDelay = time.Millisecond
	client := NewClient(cfg)

	text, err := client.GenerateNarrative(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" {
		t.Errorf("unexpected text: %q", text)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}
