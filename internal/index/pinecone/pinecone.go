package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pdftalk/internal/index"
	"pdftalk/internal/models"
)

const defaultControllerURL = "https://api.pinecone.io"

// Store is a minimal REST client to a Pinecone serverless index. Chunk text
// is kept in the record metadata under the "text" key alongside the source
// fields.
type Store struct {
	apiKey           string
	name             string
	cloud            string
	region           string
	controllerURL    string
	host             string // data-plane host, cached after describe
	client           *http.Client
	pollInterval     time.Duration
	provisionTimeout time.Duration
}

type Config struct {
	APIKey        string
	Name          string
	Cloud         string
	Region        string
	ControllerURL string
	Timeout       time.Duration
	// PollInterval is the initial describe-index poll delay; it backs off
	// exponentially up to ProvisionTimeout.
	PollInterval     time.Duration
	ProvisionTimeout time.Duration
}

func New(cfg Config) *Store {
	if cfg.ControllerURL == "" {
		cfg.ControllerURL = defaultControllerURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ProvisionTimeout == 0 {
		cfg.ProvisionTimeout = 2 * time.Minute
	}
	return &Store{
		apiKey:           cfg.APIKey,
		name:             cfg.Name,
		cloud:            cfg.Cloud,
		region:           cfg.Region,
		controllerURL:    strings.TrimRight(cfg.ControllerURL, "/"),
		client:           &http.Client{Timeout: cfg.Timeout},
		pollInterval:     cfg.PollInterval,
		provisionTimeout: cfg.ProvisionTimeout,
	}
}

type describeResponse struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// Ensure creates the index if absent and waits until it reports ready. A
// pre-existing index is reused by name; dimension and metric are not
// validated against it.
func (s *Store) Ensure(ctx context.Context, dimension int, metric string) error {
	desc, found, err := s.describe(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexProvisioning, err)
	}
	if found {
		log.Info().Str("index", s.name).Msg("Index already exists, reusing")
		s.host = desc.Host
		if desc.Status.Ready {
			return nil
		}
		return s.waitReady(ctx)
	}

	log.Info().Str("index", s.name).Int("dimension", dimension).Str("metric", metric).Msg("Creating index")
	body := map[string]any{
		"name":      s.name,
		"dimension": dimension,
		"metric":    metric,
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  s.cloud,
				"region": s.region,
			},
		},
	}
	if err := s.doJSON(ctx, http.MethodPost, s.controllerURL+"/indexes", body, nil); err != nil {
		return fmt.Errorf("%w: create: %v", models.ErrIndexProvisioning, err)
	}
	return s.waitReady(ctx)
}

// waitReady polls describe-index with exponential backoff until the index is
// ready or the provision timeout elapses.
func (s *Store) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(s.provisionTimeout)
	delay := s.pollInterval
	for {
		desc, found, err := s.describe(ctx)
		if err != nil {
			return fmt.Errorf("%w: describe: %v", models.ErrIndexProvisioning, err)
		}
		if found && desc.Status.Ready {
			s.host = desc.Host
			log.Info().Str("index", s.name).Msg("Index ready")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: index %q not ready after %s", models.ErrIndexProvisioning, s.name, s.provisionTimeout)
		}
		log.Debug().Str("index", s.name).Dur("delay", delay).Msg("Waiting for index to become ready")
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", models.ErrIndexProvisioning, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
	}
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	_, found, err := s.describe(ctx)
	return found, err
}

func (s *Store) Delete(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.controllerURL+"/indexes/"+s.name, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// absent index is not an error
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delete index %s failed: %s", s.name, resp.Status)
	}
	s.host = ""
	return nil
}

func (s *Store) Add(ctx context.Context, records []index.Record) error {
	host, err := s.dataURL(ctx)
	if err != nil {
		return err
	}
	vectors := make([]map[string]any, len(records))
	for i, rec := range records {
		vectors[i] = map[string]any{
			"id":     rec.ID,
			"values": rec.Values,
			"metadata": map[string]any{
				"text":     rec.Text,
				"source":   rec.Metadata.Source,
				"page":     rec.Metadata.Page,
				"pdf_name": rec.Metadata.PDFName,
			},
		}
	}
	return s.doJSON(ctx, http.MethodPost, host+"/vectors/upsert", map[string]any{"vectors": vectors}, nil)
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	host, err := s.dataURL(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float32        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.doJSON(ctx, http.MethodPost, host+"/query", body, &resp); err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		chunk := models.Chunk{}
		if v, ok := m.Metadata["text"].(string); ok {
			chunk.Content = v
		}
		if v, ok := m.Metadata["source"].(string); ok {
			chunk.Metadata.Source = v
		}
		if v, ok := m.Metadata["page"].(float64); ok {
			chunk.Metadata.Page = int(v)
		}
		if v, ok := m.Metadata["pdf_name"].(string); ok {
			chunk.Metadata.PDFName = v
		}
		results = append(results, models.SearchResult{Chunk: chunk, Score: m.Score})
	}
	return results, nil
}

// dataURL resolves the index's data-plane base URL, describing the index
// once to learn its host.
func (s *Store) dataURL(ctx context.Context) (string, error) {
	if s.host == "" {
		desc, found, err := s.describe(ctx)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("index %q does not exist", s.name)
		}
		s.host = desc.Host
	}
	if strings.HasPrefix(s.host, "http://") || strings.HasPrefix(s.host, "https://") {
		return strings.TrimRight(s.host, "/"), nil
	}
	return "https://" + s.host, nil
}

func (s *Store) describe(ctx context.Context) (*describeResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.controllerURL+"/indexes/"+s.name, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Api-Key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("describe index %s failed: %s", s.name, resp.Status)
	}
	var desc describeResponse
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, false, err
	}
	return &desc, true, nil
}

func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(payload)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
