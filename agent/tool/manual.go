package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

const (
	ToolSearchManual = "searchManual"

	DocumentTypeOperationManual = "Operation and maintenance manual"
	DocumentTypeShopManual      = "Shop Manual"

	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	maxManualResponseSize = 4 << 20
)

var documentTypeSynonyms = map[string]string{
	"取扱説明書":                  DocumentTypeOperationManual,
	"取説":                     DocumentTypeOperationManual,
	"operation manual (jpn)": DocumentTypeOperationManual,
	"ショップマニュアル":              DocumentTypeShopManual,
	"分解組立手順":                 DocumentTypeShopManual,
	"shop manual (jpn)":      DocumentTypeShopManual,
}

type ManualSearchConfig struct {
	URL             string        `envconfig:"URL"`
	SubscriptionKey string        `envconfig:"SUBSCRIPTION_KEY" split_words:"true"`
	DocumentNumber  string        `envconfig:"DOCUMENT_NUMBER" split_words:"true" default:"SEN06519-24"`
	Source          string        `envconfig:"SOURCE" default:"Document Center"`
	Language        string        `envconfig:"LANGUAGE" default:"English"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

type manualSearchRequest struct {
	Query          string `json:"Query"`
	DocumentNumber string `json:"DocumentNumber"`
	Source         string `json:"Source"`
	DocumentType   string `json:"DocumentType"`
	Language       string `json:"Language"`
}

type ManualSearchResult struct {
	OpenAIAnswer string         `json:"openAiAnswer"`
	Raw          map[string]any `json:"raw"`
}

// NormalizeDocumentType maps known aliases onto the search service's document types.
func NormalizeDocumentType(documentType string) string {
	if canonical, ok := documentTypeSynonyms[documentType]; ok {
		return canonical
	}
	return documentType
}

// ManualSearch answers searchManual through the document query service.
type ManualSearch struct {
	cfg        ManualSearchConfig
	httpClient *http.Client
}

func NewManualSearch(cfg ManualSearchConfig, httpClient *http.Client) *ManualSearch {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ManualSearch{cfg: cfg, httpClient: httpClient}
}

func (s *ManualSearch) Execute(ctx context.Context, _ string, args map[string]any) (contractx.ToolResult, error) {
	result, err := s.Search(ctx, stringArg(args, "documentType"), stringArg(args, "query"))
	if err != nil {
		return contractx.ToolResult{}, err
	}
	return contractx.ToolResult{Success: true, Payload: result}, nil
}

// Search issues one request; failures are returned, never retried.
func (s *ManualSearch) Search(ctx context.Context, documentType, query string) (ManualSearchResult, error) {
	if strings.TrimSpace(s.cfg.URL) == "" {
		return ManualSearchResult{}, errors.New("manual search url is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(manualSearchRequest{
		Query:          query,
		DocumentNumber: s.cfg.DocumentNumber,
		Source:         s.cfg.Source,
		DocumentType:   NormalizeDocumentType(documentType),
		Language:       s.cfg.Language,
	})
	if err != nil {
		return ManualSearchResult{}, fmt.Errorf("marshal manual search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return ManualSearchResult{}, fmt.Errorf("create manual search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(subscriptionKeyHeader, s.cfg.SubscriptionKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ManualSearchResult{}, fmt.Errorf("manual search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxManualResponseSize))
	if err != nil {
		return ManualSearchResult{}, fmt.Errorf("read manual search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ManualSearchResult{}, fmt.Errorf("manual search status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ManualSearchResult{}, fmt.Errorf("decode manual search response: %w", err)
	}

	answer := ""
	if topN, ok := decoded["topNResults"].(map[string]any); ok {
		answer, _ = topN["openAiAnswer"].(string)
	}
	log.Ctx(ctx).Debug().
		Str("document_type", NormalizeDocumentType(documentType)).
		Int("answer_len", len(answer)).
		Msg("manual search completed")

	return ManualSearchResult{OpenAIAnswer: answer, Raw: decoded}, nil
}
