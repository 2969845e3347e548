package itineraries

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/domain/media"
	"github.com/cairntrips/cairn/internal/app/domain/pricing"
	"github.com/cairntrips/cairn/internal/app/domain/scoring"
	"github.com/cairntrips/cairn/internal/app/domain/search"
	"github.com/cairntrips/cairn/internal/app/models"
	"github.com/cairntrips/cairn/internal/pkg/config"
)

const (
	defaultPageLimit = "10"
	defaultPage      = "1"

	submissionTimeout = 10 * time.Second
)

// Handler serves the itinerary endpoints: catalog browsing, pricing, and the
// two search entry points.
type Handler struct {
	service     Service
	search      search.Service
	scorer      scoring.Service
	media       media.Service
	submissions SubmissionRepository
	searchCfg   config.SearchConfig
	log         *zap.Logger
}

func NewHandler(
	service Service,
	searchService search.Service,
	scorer scoring.Service,
	mediaService media.Service,
	submissions SubmissionRepository,
	searchCfg config.SearchConfig,
	log *zap.Logger,
) *Handler {
	return &Handler{
		service:     service,
		search:      searchService,
		scorer:      scorer,
		media:       mediaService,
		submissions: submissions,
		searchCfg:   searchCfg,
		log:         log,
	}
}

// GetAll returns one catalog page, newest first, with day items resolved.
// When every itinerary on the page fails to populate, the raw list is still
// worth returning.
func (h *Handler) GetAll(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", defaultPageLimit), 10, 64)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	page, err := strconv.ParseInt(c.DefaultQuery("page", defaultPage), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}

	populated, processed, err := h.service.List(c.Request.Context(), page, limit)
	if err != nil {
		h.log.Error("Failed to list itineraries", zap.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve itineraries"})
		return
	}

	if len(populated) == 0 && len(processed) > 0 {
		h.log.Warn("No itinerary on the page populated, returning raw list",
			zap.Int("count", len(processed)),
		)
		c.JSON(http.StatusOK, processed)
		return
	}
	c.JSON(http.StatusOK, populated)
}

// GetByID returns one itinerary with its day items resolved.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	populated, err := h.service.GetByID(c.Request.Context(), id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Itinerary not found"})
	case err != nil:
		h.log.Error("Failed to load itinerary",
			zap.String("id", id.Hex()),
			zap.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve itinerary"})
	default:
		c.JSON(http.StatusOK, populated)
	}
}

// GetPricing returns the per-person cost breakdown for one itinerary.
func (h *Handler) GetPricing(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	populated, err := h.service.GetByID(c.Request.Context(), id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Itinerary not found"})
	case err != nil:
		h.log.Error("Failed to price itinerary",
			zap.String("id", id.Hex()),
			zap.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve itinerary"})
	default:
		c.JSON(http.StatusOK, pricing.Compute(populated))
	}
}

// Search runs the search cascade, generating itineraries when the catalog
// comes up short of the configured minimum.
func (h *Handler) Search(c *gin.Context) {
	h.runSearch(c, h.searchCfg.MinResults)
}

// SearchOrGenerate is Search with its own, lower generation threshold.
func (h *Handler) SearchOrGenerate(c *gin.Context) {
	h.runSearch(c, h.searchCfg.MinGenerateResults)
}

func (h *Handler) runSearch(c *gin.Context, threshold int) {
	var query models.SearchQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		h.log.Warn("Invalid search request", zap.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid search request"})
		return
	}

	ctx := c.Request.Context()

	// Queries naming at least one location are worth keeping a record of.
	if len(query.Locations) > 0 {
		h.logSubmission(ctx, &query)
	}

	found, err := h.search.SearchOrGenerate(ctx, &query, threshold)
	if err != nil {
		h.log.Error("Search failed", zap.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search or generate itineraries"})
		return
	}
	if len(found) == 0 {
		c.JSON(http.StatusOK, []models.SearchResponseItem{})
		return
	}

	processed := h.media.AttachImages(ctx, found)
	scored := h.attachScores(ctx, processed, &query)
	c.JSON(http.StatusOK, h.service.ToSearchResponse(ctx, scored))
}

// attachScores scores the blended results and pins the normalized score onto
// each itinerary the scorer admitted. Results keep their cascade order;
// itineraries below the admission threshold go out unscored rather than
// dropped.
func (h *Handler) attachScores(ctx context.Context, itineraries []models.FeaturedVacation, query *models.SearchQuery) []models.FeaturedVacation {
	ranked := h.scorer.ScoreAndRank(ctx, itineraries, query)
	weights := h.scorer.Weights()
	maxPossible := weights.MaxPossibleScore()

	scoreByID := make(map[primitive.ObjectID]models.ScoredItinerary, len(ranked))
	for _, entry := range ranked {
		if entry.Itinerary.ID != nil {
			scoreByID[*entry.Itinerary.ID] = entry
		}
	}

	for i := range itineraries {
		if itineraries[i].ID == nil {
			continue
		}
		entry, ok := scoreByID[*itineraries[i].ID]
		if !ok {
			continue
		}
		matchScore := scoring.NormalizeScore(entry.TotalScore, maxPossible)
		breakdown := scoring.NormalizeBreakdown(entry.ScoreBreakdown, weights)
		itineraries[i].MatchScore = &matchScore
		itineraries[i].ScoreBreakdown = &breakdown
	}
	return itineraries
}

// logSubmission records the query in the submissions log. Best effort: the
// response never waits on it and a write failure only warns.
func (h *Handler) logSubmission(ctx context.Context, query *models.SearchQuery) {
	submission := models.SubmissionFromQuery(query, time.Now().UTC())
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, submissionTimeout)
		defer cancel()
		if err := h.submissions.Insert(ctx, &submission); err != nil {
			h.log.Warn("Search submission not logged", zap.Any("error", err))
		}
	}()
}
