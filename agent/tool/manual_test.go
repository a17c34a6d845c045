package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeDocumentType(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"取扱説明書":                  DocumentTypeOperationManual,
		"取説":                     DocumentTypeOperationManual,
		"operation manual (jpn)": DocumentTypeOperationManual,
		"ショップマニュアル":              DocumentTypeShopManual,
		"分解組立手順":                 DocumentTypeShopManual,
		"shop manual (jpn)":      DocumentTypeShopManual,
		"Parts Book":             "Parts Book",
		"":                       "",
	}
	for in, want := range cases {
		if got := NormalizeDocumentType(in); got != want {
			t.Fatalf("NormalizeDocumentType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestManualSearchSendsRequestAndReadsAnswer(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"topNResults":{"openAiAnswer":"Check the fan belt tension."}}`)
	}))
	defer server.Close()

	search := NewManualSearch(ManualSearchConfig{
		URL:             server.URL,
		SubscriptionKey: "sub-key",
		DocumentNumber:  "SEN06519-24",
		Source:          "Document Center",
		Language:        "English",
	}, server.Client())

	out, err := search.Execute(context.Background(), ToolSearchManual, map[string]any{
		"model":        "PC200-8",
		"serial":       "500001",
		"documentType": "取説",
		"query":        "fan belt",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotKey != "sub-key" {
		t.Fatalf("subscription key = %q", gotKey)
	}
	want := map[string]string{
		"Query":          "fan belt",
		"DocumentNumber": "SEN06519-24",
		"Source":         "Document Center",
		"DocumentType":   DocumentTypeOperationManual,
		"Language":       "English",
	}
	for k, v := range want {
		if gotBody[k] != v {
			t.Fatalf("body[%s] = %q, want %q", k, gotBody[k], v)
		}
	}

	result, ok := out.Payload.(ManualSearchResult)
	if !ok || !out.Success {
		t.Fatalf("unexpected result: %#v", out)
	}
	if result.OpenAIAnswer != "Check the fan belt tension." || result.Raw == nil {
		t.Fatalf("unexpected payload: %+v", result)
	}
}

func TestManualSearchMissingAnswerIsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"other":1}`)
	}))
	defer server.Close()

	result, err := NewManualSearch(ManualSearchConfig{URL: server.URL}, server.Client()).Search(context.Background(), "Shop Manual", "q")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.OpenAIAnswer != "" {
		t.Fatalf("expected empty answer, got %q", result.OpenAIAnswer)
	}
}

func TestManualSearchFailuresAreNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewManualSearch(ManualSearchConfig{URL: server.URL}, server.Client()).Search(context.Background(), "", "q")
	if err == nil {
		t.Fatal("expected status error")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one request, got %d", hits.Load())
	}
}

func TestManualSearchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	search := NewManualSearch(ManualSearchConfig{URL: server.URL, Timeout: 50 * time.Millisecond}, server.Client())
	if _, err := search.Search(context.Background(), "", "q"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestManualSearchUnconfigured(t *testing.T) {
	t.Parallel()

	if _, err := NewManualSearch(ManualSearchConfig{}, nil).Search(context.Background(), "", "q"); err == nil {
		t.Fatal("expected configuration error")
	}
}
