package qstash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishJSON(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"messageId":"msg_1"}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, Token: "tok", Destination: "https://hooks.example.com/staff"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	resp, err := client.PublishJSON(context.Background(), map[string]any{"recipient": "S001"})
	if err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	if resp.MessageID != "msg_1" {
		t.Fatalf("MessageID = %q", resp.MessageID)
	}
	if gotPath != "/v2/publish/https://hooks.example.com/staff" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["recipient"] != "S001" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestPublishJSONHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid token"}`)
	}))
	t.Cleanup(server.Close)

	client := MustNew(Config{URL: server.URL, Token: "bad", Destination: "https://hooks.example.com/staff"})
	if _, err := client.PublishJSON(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{URL: "https://qstash.upstash.io", Destination: "x"}); err == nil {
		t.Fatal("expected missing token error")
	}
	if (Config{Token: "t"}).Enabled() {
		t.Fatal("config without destination must not be enabled")
	}
}
