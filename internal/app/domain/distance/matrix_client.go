package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cairntrips/cairn/internal/app/models"
	appmetrics "github.com/cairntrips/cairn/internal/observability/metrics"
)

const (
	matrixBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

	// The matrix API caps each request at 25 origins and 25 destinations.
	maxMatrixOrigins      = 25
	maxMatrixDestinations = 25
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

func formatPoint(p Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func formatPoints(points []Point) string {
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, formatPoint(p))
	}
	return strings.Join(parts, "|")
}

// Matrix fetches real travel distances and durations between coordinates.
type Matrix interface {
	FetchDistance(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.DistanceResult, error)
	FetchMatrix(ctx context.Context, origins, destinations []Point, mode models.TravelMode, withTraffic bool) ([][]models.DistanceResult, error)
}

var _ Matrix = (*MatrixClient)(nil)

// MatrixClient calls the Google Distance Matrix REST API. Requests are rate
// limited so bursty batch routing cannot blow through the API quota.
type MatrixClient struct {
	logger  *zap.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
}

func NewMatrixClient(apiKey string, logger *zap.Logger) (*MatrixClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("distance matrix API key not set: %w", models.ErrNotConfigured)
	}

	return &MatrixClient{
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		baseURL: matrixBaseURL,
		apiKey:  apiKey,
	}, nil
}

type matrixValue struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

type matrixElement struct {
	Status            string       `json:"status"`
	Distance          *matrixValue `json:"distance"`
	Duration          *matrixValue `json:"duration"`
	DurationInTraffic *matrixValue `json:"duration_in_traffic"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Rows         []matrixRow `json:"rows"`
}

func (c *MatrixClient) query(ctx context.Context, origins, destinations string, mode models.TravelMode, withTraffic bool) (*matrixResponse, error) {
	q := url.Values{}
	q.Set("origins", origins)
	q.Set("destinations", destinations)
	q.Set("mode", string(mode))
	q.Set("key", c.apiKey)
	// Traffic modelling only applies to driving routes.
	if mode == models.ModeDriving && withTraffic {
		q.Set("departure_time", "now")
		q.Set("traffic_model", "best_guess")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("error waiting for matrix rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building matrix request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling distance matrix API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("distance matrix API returned HTTP %d: %w", resp.StatusCode, models.ErrDependencyUnavailable)
	}

	var parsed matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("error decoding distance matrix response: %w", err)
	}
	if parsed.Status != "OK" {
		return nil, fmt.Errorf("distance matrix API error %s: %s", parsed.Status, parsed.ErrorMessage)
	}
	return &parsed, nil
}

func resultFromElement(el matrixElement) (*models.DistanceResult, error) {
	if el.Status != "OK" {
		return nil, fmt.Errorf("distance matrix element error: %s", el.Status)
	}
	if el.Distance == nil || el.Duration == nil {
		return nil, fmt.Errorf("distance matrix element missing distance or duration")
	}
	result := &models.DistanceResult{
		DistanceMeters:  el.Distance.Value,
		DurationMinutes: el.Duration.Value / 60,
		FromCache:       false,
	}
	if el.DurationInTraffic != nil {
		minutes := el.DurationInTraffic.Value / 60
		result.DurationInTrafficMinutes = &minutes
	}
	return result, nil
}

func (c *MatrixClient) FetchDistance(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.DistanceResult, error) {
	ctx, span := otel.Tracer("MatrixClient").Start(ctx, "FetchDistance", trace.WithAttributes(
		attribute.String("travel.mode", string(mode)),
		attribute.Bool("travel.with_traffic", withTraffic),
	))
	defer span.End()

	appmetrics.Get().MatrixRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "single")))

	parsed, err := c.query(ctx, formatPoint(origin), formatPoint(destination), mode, withTraffic)
	if err != nil {
		c.logger.Warn("Distance matrix request failed", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Matrix request failed")
		return nil, err
	}
	if len(parsed.Rows) == 0 || len(parsed.Rows[0].Elements) == 0 {
		err := fmt.Errorf("distance matrix returned no elements")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty matrix response")
		return nil, err
	}

	result, err := resultFromElement(parsed.Rows[0].Elements[0])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Element error")
		return nil, err
	}

	span.SetAttributes(attribute.Int("distance.meters", result.DistanceMeters))
	span.SetStatus(codes.Ok, "Distance fetched")
	return result, nil
}

func (c *MatrixClient) FetchMatrix(ctx context.Context, origins, destinations []Point, mode models.TravelMode, withTraffic bool) ([][]models.DistanceResult, error) {
	ctx, span := otel.Tracer("MatrixClient").Start(ctx, "FetchMatrix", trace.WithAttributes(
		attribute.Int("matrix.origins", len(origins)),
		attribute.Int("matrix.destinations", len(destinations)),
		attribute.String("travel.mode", string(mode)),
	))
	defer span.End()

	if len(origins) == 0 || len(destinations) == 0 {
		return [][]models.DistanceResult{}, nil
	}
	if len(origins) > maxMatrixOrigins || len(destinations) > maxMatrixDestinations {
		err := fmt.Errorf("matrix request too large: %dx%d exceeds %dx%d",
			len(origins), len(destinations), maxMatrixOrigins, maxMatrixDestinations)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Matrix too large")
		return nil, err
	}

	appmetrics.Get().MatrixRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "batch")))

	parsed, err := c.query(ctx, formatPoints(origins), formatPoints(destinations), mode, withTraffic)
	if err != nil {
		c.logger.Warn("Batch distance matrix request failed", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Matrix request failed")
		return nil, err
	}
	if len(parsed.Rows) != len(origins) {
		err := fmt.Errorf("distance matrix returned %d rows for %d origins", len(parsed.Rows), len(origins))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row count mismatch")
		return nil, err
	}

	results := make([][]models.DistanceResult, len(origins))
	for i, row := range parsed.Rows {
		if len(row.Elements) != len(destinations) {
			err := fmt.Errorf("distance matrix row %d has %d elements for %d destinations", i, len(row.Elements), len(destinations))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Element count mismatch")
			return nil, err
		}
		results[i] = make([]models.DistanceResult, len(destinations))
		for j, el := range row.Elements {
			result, err := resultFromElement(el)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "Element error")
				return nil, err
			}
			results[i][j] = *result
		}
	}

	span.SetStatus(codes.Ok, "Matrix fetched")
	return results, nil
}
