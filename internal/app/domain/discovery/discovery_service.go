package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
	"github.com/cairntrips/cairn/internal/pkg/config"
)

const (
	discoveryBaseURL = "https://discoveryengine.googleapis.com"

	// One page of semantic results is plenty for a generation pass.
	searchPageSize = 20
)

var _ Service = (*ServiceImpl)(nil)

// Service queries the semantic activity index. The integration is optional:
// construction fails with models.ErrNotConfigured when the engine is not set
// up, and callers treat that and every runtime error as "use the catalog".
type Service interface {
	SearchActivities(ctx context.Context, terms []string, locationText string) ([]models.Activity, error)
}

type ServiceImpl struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string

	projectID     string
	location      string
	dataStoreID   string
	servingConfig string
	accessToken   string
}

func NewServiceImpl(cfg config.DiscoveryConfig, logger *zap.Logger) (*ServiceImpl, error) {
	if cfg.ProjectID == "" || cfg.DataStoreID == "" {
		return nil, fmt.Errorf("discovery engine project or data store not set: %w", models.ErrNotConfigured)
	}

	return &ServiceImpl{
		logger:        logger,
		client:        &http.Client{Timeout: 10 * time.Second},
		baseURL:       discoveryBaseURL,
		projectID:     cfg.ProjectID,
		location:      cfg.Location,
		dataStoreID:   cfg.DataStoreID,
		servingConfig: cfg.ServingConfig,
		accessToken:   cfg.AccessToken,
	}, nil
}

type queryExpansionSpec struct {
	Condition string `json:"condition"`
}

type spellCorrectionSpec struct {
	Mode string `json:"mode"`
}

type searchRequest struct {
	Query               string              `json:"query"`
	PageSize            int                 `json:"pageSize"`
	QueryExpansionSpec  queryExpansionSpec  `json:"queryExpansionSpec"`
	SpellCorrectionSpec spellCorrectionSpec `json:"spellCorrectionSpec"`
}

type searchDocument struct {
	ID         string         `json:"id"`
	StructData map[string]any `json:"structData"`
	JSONData   string         `json:"jsonData"`
}

type searchResult struct {
	ID       string         `json:"id"`
	Document searchDocument `json:"document"`
}

type searchResponse struct {
	Results       []searchResult `json:"results"`
	TotalSize     int            `json:"totalSize"`
	NextPageToken string         `json:"nextPageToken"`
}

func (s *ServiceImpl) SearchActivities(ctx context.Context, terms []string, locationText string) ([]models.Activity, error) {
	ctx, span := otel.Tracer("DiscoveryService").Start(ctx, "SearchActivities", trace.WithAttributes(
		attribute.StringSlice("discovery.terms", terms),
		attribute.String("discovery.location", locationText),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "SearchActivities"))

	query := buildSearchQuery(terms, locationText)
	body, err := json.Marshal(searchRequest{
		Query:               query,
		PageSize:            searchPageSize,
		QueryExpansionSpec:  queryExpansionSpec{Condition: "AUTO"},
		SpellCorrectionSpec: spellCorrectionSpec{Mode: "AUTO"},
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding discovery request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/dataStores/%s/servingConfigs/%s:search",
		s.baseURL, s.projectID, s.location, s.dataStoreID, s.servingConfig)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error building discovery request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		l.Warn("Discovery engine request failed", zap.String("query", query), zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Discovery request failed")
		return nil, fmt.Errorf("error calling discovery engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("discovery engine returned HTTP %d: %w", resp.StatusCode, models.ErrDependencyUnavailable)
		l.Warn("Discovery engine request rejected", zap.String("query", query), zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Discovery request rejected")
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad discovery response")
		return nil, fmt.Errorf("error decoding discovery response: %w", err)
	}

	activities := make([]models.Activity, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		doc := result.Document.StructData
		if len(doc) == 0 && result.Document.JSONData != "" {
			doc = map[string]any{}
			if err := json.Unmarshal([]byte(result.Document.JSONData), &doc); err != nil {
				l.Warn("Skipping discovery document with malformed jsonData",
					zap.String("document_id", result.Document.ID),
					zap.Any("error", err),
				)
				continue
			}
		}
		if len(doc) == 0 {
			continue
		}
		activities = append(activities, ActivityFromDocument(result.Document.ID, doc))
	}

	l.Debug("Semantic search complete", zap.String("query", query), zap.Int("count", len(activities)))
	span.SetAttributes(attribute.Int("discovery.result_count", len(activities)))
	span.SetStatus(codes.Ok, "Semantic search complete")
	return activities, nil
}

// buildSearchQuery joins the requested activity terms and location into one
// natural-language query. An empty request searches for "activities".
func buildSearchQuery(terms []string, locationText string) string {
	parts := make([]string, 0, len(terms)+1)
	for _, term := range terms {
		if trimmed := strings.TrimSpace(term); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if trimmed := strings.TrimSpace(locationText); trimmed != "" {
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return "activities"
	}
	return strings.Join(parts, " ")
}
