package itineraries

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cairntrips/cairn/internal/app/domain/activities"
	"github.com/cairntrips/cairn/internal/app/domain/media"
	"github.com/cairntrips/cairn/internal/app/models"
)

const populateConcurrency = 8

var _ Service = (*ServiceImpl)(nil)

// Service reads the catalog and shapes itineraries for responses: listing,
// reference resolution, and the flattened search response format.
type Service interface {
	// List returns one catalog page, newest first, with day items resolved.
	// The second slice carries the image-processed originals so callers can
	// still respond when every population fails.
	List(ctx context.Context, page, limit int64) ([]models.PopulatedItinerary, []models.FeaturedVacation, error)

	// GetByID fetches one itinerary and resolves its day items.
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.PopulatedItinerary, error)

	// Populate resolves every day-item reference on one itinerary. Missing
	// catalog documents become labeled placeholders rather than errors.
	Populate(ctx context.Context, itinerary models.FeaturedVacation) (models.PopulatedItinerary, error)

	// ToSearchResponse flattens itineraries into the search response shape,
	// dropping duplicates and unresolvable activity references.
	ToSearchResponse(ctx context.Context, itineraries []models.FeaturedVacation) []models.SearchResponseItem
}

type ServiceImpl struct {
	logger     *zap.Logger
	repo       Repository
	lodging    LodgingRepository
	activities activities.Repository
	media      media.Service
}

func NewServiceImpl(repo Repository, lodging LodgingRepository, activityRepo activities.Repository, mediaService media.Service, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		repo:       repo,
		lodging:    lodging,
		activities: activityRepo,
		media:      mediaService,
	}
}

func (s *ServiceImpl) List(ctx context.Context, page, limit int64) ([]models.PopulatedItinerary, []models.FeaturedVacation, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "List", trace.WithAttributes(
		attribute.Int64("page", page),
		attribute.Int64("limit", limit),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "List"))

	itineraries, err := s.repo.List(ctx, page, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Catalog list failed")
		return nil, nil, err
	}
	if len(itineraries) == 0 {
		span.SetStatus(codes.Ok, "Catalog empty")
		return []models.PopulatedItinerary{}, []models.FeaturedVacation{}, nil
	}

	processed := s.media.AttachImages(ctx, itineraries)

	results := make([]*models.PopulatedItinerary, len(processed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(populateConcurrency)
	for i := range processed {
		g.Go(func() error {
			populated, err := s.Populate(gctx, processed[i])
			if err != nil {
				l.Warn("Skipping itinerary that failed to populate",
					zap.String("trip_name", processed[i].TripName),
					zap.Any("error", err),
				)
				return nil
			}
			results[i] = &populated
			return nil
		})
	}
	_ = g.Wait()

	populated := make([]models.PopulatedItinerary, 0, len(results))
	for _, result := range results {
		if result != nil {
			populated = append(populated, *result)
		}
	}

	span.SetAttributes(attribute.Int("itinerary.count", len(populated)))
	span.SetStatus(codes.Ok, "Itineraries listed")
	return populated, processed, nil
}

func (s *ServiceImpl) GetByID(ctx context.Context, id primitive.ObjectID) (*models.PopulatedItinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GetByID", trace.WithAttributes(
		attribute.String("itinerary.id", id.Hex()),
	))
	defer span.End()

	itinerary, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Catalog lookup failed")
		return nil, err
	}

	processed := s.media.AttachImages(ctx, []models.FeaturedVacation{*itinerary})
	populated, err := s.Populate(ctx, processed[0])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Population failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Itinerary populated")
	return &populated, nil
}

func (s *ServiceImpl) Populate(ctx context.Context, itinerary models.FeaturedVacation) (models.PopulatedItinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Populate", trace.WithAttributes(
		attribute.String("itinerary.name", itinerary.TripName),
	))
	defer span.End()

	activitiesByID, err := s.resolveActivities(ctx, itinerary.Days.ActivityIDs())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activity resolution failed")
		return models.PopulatedItinerary{}, err
	}

	lodgingByID, err := s.resolveLodging(ctx, itinerary.Days.AccommodationIDs())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lodging resolution failed")
		return models.PopulatedItinerary{}, err
	}

	imagesByID := s.activityImages(ctx, activitiesByID)

	now := time.Now().UTC()
	populatedDays := make(map[string][]models.PopulatedDayItem, len(itinerary.Days))
	summaries := []models.ActivitySummary{}

	for _, key := range itinerary.Days.SortedKeys() {
		items := make([]models.PopulatedDayItem, 0, len(itinerary.Days[key]))
		for _, item := range itinerary.Days[key] {
			switch item.Type {
			case models.DayItemTransportation:
				items = append(items, models.PopulatedDayItem{
					Type:     item.Type,
					Time:     item.Time,
					Location: item.Location,
					Name:     item.Name,
				})

			case models.DayItemActivity:
				activityID := item.ActivityID
				activity, ok := activitiesByID[activityID]
				if !ok {
					s.logger.Warn("Activity not found, using placeholder",
						zap.String("activity_id", activityID.Hex()),
					)
					activity = placeholderActivity(activityID)
				} else {
					if images := imagesByID[activityID.Hex()]; len(images) > 0 {
						activity.Images = images
						activity.PrimaryImage = &images[0]
					}
					summaries = append(summaries, models.ActivitySummary{
						Time:  item.Time,
						Label: activity.Title,
						Tags:  activity.Tags,
					})
				}
				items = append(items, models.PopulatedDayItem{
					Type:       item.Type,
					Time:       item.Time,
					ActivityID: &activityID,
					Activity:   &activity,
				})

			case models.DayItemAccommodation:
				accommodation, ok := lodgingByID[item.AccommodationID]
				if !ok {
					s.logger.Warn("Accommodation not found, using placeholder",
						zap.String("accommodation_id", item.AccommodationID.Hex()),
					)
					accommodation = placeholderAccommodation(item.AccommodationID, now)
				}
				items = append(items, models.PopulatedDayItem{
					Type:          item.Type,
					Time:          item.Time,
					Accommodation: &accommodation,
				})
			}
		}
		populatedDays[key] = items
	}

	itinerary.Activities = summaries

	span.SetAttributes(attribute.Int("activity.count", len(summaries)))
	span.SetStatus(codes.Ok, "Itinerary populated")
	return models.PopulatedItinerary{
		FeaturedVacation: itinerary,
		PopulatedDays:    populatedDays,
	}, nil
}

func (s *ServiceImpl) ToSearchResponse(ctx context.Context, itineraries []models.FeaturedVacation) []models.SearchResponseItem {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "ToSearchResponse", trace.WithAttributes(
		attribute.Int("itinerary.count", len(itineraries)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ToSearchResponse"))

	seen := make(map[primitive.ObjectID]struct{}, len(itineraries))
	items := make([]models.SearchResponseItem, 0, len(itineraries))
	for _, itinerary := range itineraries {
		if itinerary.ID != nil {
			if _, dup := seen[*itinerary.ID]; dup {
				l.Debug("Skipping duplicate itinerary", zap.String("trip_name", itinerary.TripName))
				continue
			}
			seen[*itinerary.ID] = struct{}{}
		}

		resolved := make(map[primitive.ObjectID]models.Activity)
		if ids := itinerary.Days.ActivityIDs(); len(ids) > 0 {
			found, err := s.activities.FindByIDs(ctx, ids)
			if err != nil {
				// Activity items without a resolved document fall out of the
				// response days below.
				l.Warn("Activity lookup failed during transform",
					zap.String("trip_name", itinerary.TripName),
					zap.Any("error", err),
				)
			}
			for _, activity := range found {
				if activity.ID != nil {
					resolved[*activity.ID] = activity
				}
			}
		}

		days := make(map[string][]models.SearchDayItem, len(itinerary.Days))
		summaries := []models.ActivitySummary{}
		for _, key := range itinerary.Days.SortedKeys() {
			dayItems := make([]models.SearchDayItem, 0, len(itinerary.Days[key]))
			for _, item := range itinerary.Days[key] {
				switch item.Type {
				case models.DayItemTransportation:
					dayItems = append(dayItems, models.SearchDayItem{
						Type:     item.Type,
						Time:     item.Time,
						Location: item.Location,
						Name:     item.Name,
					})
				case models.DayItemActivity:
					activity, ok := resolved[item.ActivityID]
					if !ok {
						continue
					}
					dayItems = append(dayItems, models.SearchDayItem{
						Type:       item.Type,
						Time:       item.Time,
						ActivityID: item.ActivityID,
					})
					summaries = append(summaries, models.ActivitySummary{
						Time:  item.Time,
						Label: activity.Title,
						Tags:  activity.Tags,
					})
				case models.DayItemAccommodation:
					dayItems = append(dayItems, models.SearchDayItem{
						Type:            item.Type,
						Time:            item.Time,
						AccommodationID: item.AccommodationID,
					})
				}
			}
			days[key] = dayItems
		}

		id := primitive.NewObjectID()
		if itinerary.ID != nil {
			id = *itinerary.ID
		}
		images := itinerary.Images
		if images == nil {
			images = []string{}
		}
		personCost := 0.0
		if itinerary.PersonCost != nil {
			personCost = *itinerary.PersonCost
		}

		items = append(items, models.SearchResponseItem{
			ID:             id,
			FareharborID:   itinerary.FareharborID,
			TripName:       itinerary.TripName,
			MinAge:         itinerary.MinAge,
			MinGroup:       itinerary.MinGroup,
			MaxGroup:       itinerary.MaxGroup,
			LengthDays:     itinerary.LengthDays,
			LengthHours:    itinerary.LengthHours,
			StartLocation:  itinerary.StartLocation,
			EndLocation:    itinerary.EndLocation,
			Description:    itinerary.Description,
			Images:         images,
			CreatedAt:      itinerary.CreatedAt,
			UpdatedAt:      itinerary.UpdatedAt,
			PersonCost:     personCost,
			Days:           days,
			Activities:     summaries,
			MatchScore:     itinerary.MatchScore,
			ScoreBreakdown: itinerary.ScoreBreakdown,
		})
	}

	span.SetAttributes(attribute.Int("response.count", len(items)))
	span.SetStatus(codes.Ok, "Responses built")
	return items
}

func (s *ServiceImpl) resolveActivities(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Activity, error) {
	resolved := make(map[primitive.ObjectID]models.Activity, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}
	found, err := s.activities.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error resolving activities: %w", err)
	}
	for _, activity := range found {
		if activity.ID != nil {
			resolved[*activity.ID] = activity
		}
	}
	return resolved, nil
}

func (s *ServiceImpl) resolveLodging(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Accommodation, error) {
	resolved := make(map[primitive.ObjectID]models.Accommodation, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}
	found, err := s.lodging.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error resolving lodging: %w", err)
	}
	for _, accommodation := range found {
		if accommodation.ID != nil {
			resolved[*accommodation.ID] = accommodation
		}
	}
	return resolved, nil
}

// activityImages fetches image lists for every resolved activity
// concurrently, keyed by hex ID.
func (s *ServiceImpl) activityImages(ctx context.Context, activitiesByID map[primitive.ObjectID]models.Activity) map[string][]string {
	ids := make([]string, 0, len(activitiesByID))
	for id := range activitiesByID {
		ids = append(ids, id.Hex())
	}
	if len(ids) == 0 {
		return map[string][]string{}
	}

	results := make([][]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(populateConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.media.ActivityImages(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	imagesByID := make(map[string][]string, len(ids))
	for i, id := range ids {
		imagesByID[id] = results[i]
	}
	return imagesByID
}

func placeholderActivity(id primitive.ObjectID) models.Activity {
	return models.Activity{
		ID:                  &id,
		Company:             "Unknown Company",
		CompanyID:           "unknown",
		BookingLink:         "#",
		OnlineBookingStatus: "unavailable",
		Title:               fmt.Sprintf("Unknown Activity (ID: %s)", id.Hex()),
		Description:         "This activity information could not be found",
		ActivityTypes:       []string{"unknown"},
		Tags:                []string{},
		DurationMinutes:     60,
		DailyTimeSlots:      []models.TimeSlot{},
		Address: models.Address{
			Street:  "Unknown",
			City:    "Unknown",
			State:   "Unknown",
			Zip:     "00000",
			Country: "Unknown",
		},
		WhatsIncluded: []string{},
		Capacity:      models.Capacity{Minimum: 1, Maximum: 10},
	}
}

func placeholderAccommodation(id primitive.ObjectID, now time.Time) models.Accommodation {
	address := "Address information unavailable"
	return models.Accommodation{
		ID:        &id,
		Name:      fmt.Sprintf("Unknown Accommodation (ID: %s)", id.Hex()),
		Address:   &address,
		Amenities: []string{"Information unavailable"},
		CreatedAt: &now,
		UpdatedAt: &now,
	}
}
