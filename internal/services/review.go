package services

import (
	"context"
	"errors"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/clock"
	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/policy"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewService enforces who may review what and maintains rating aggregates.
type ReviewService struct {
	db    *gorm.DB
	now   clock.Func
	authz *policy.Authorizer
}

func NewReviewService(db *gorm.DB, now clock.Func, authz *policy.Authorizer) *ReviewService {
	if now == nil {
		now = clock.Real()
	}
	if authz == nil {
		authz = policy.New(nil)
	}
	return &ReviewService{db: db, now: now, authz: authz}
}

// CreateReviewInput is a validated review submission.
type CreateReviewInput struct {
	BookingID string
	Rating    models.ReviewRating
	Comment   models.LocalizedText
}

// Create stores a review of a completed booking owned by the caller.
// Failures in order: unknown booking, not the owner, not completed, already reviewed.
func (s *ReviewService) Create(ctx context.Context, subject policy.Subject, in CreateReviewInput) (*models.Review, error) {
	db := s.db.WithContext(ctx)

	var booking models.Booking
	if err := db.First(&booking, "id = ?", in.BookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Booking not found")
		}
		return nil, err
	}
	if err := s.authz.Authorize(subject, policy.ReviewCreate, &booking); err != nil {
		return nil, apperror.Forbidden("You can only review your own bookings")
	}
	if booking.Status != models.BookingCompleted {
		return nil, apperror.Validation("You can only review completed bookings")
	}

	var existing int64
	if err := db.Model(&models.Review{}).Where("booking_id = ?", booking.ID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperror.Conflict("You have already reviewed this booking")
	}

	review := &models.Review{
		BookingID:  booking.ID,
		ServiceID:  booking.ServiceID,
		CustomerID: subject.ID,
		Rating:     in.Rating,
		Comment:    in.Comment,
		Status:     models.InitialReviewStatus(in.Rating.Overall),
	}
	if err := db.Omit(clause.Associations).Create(review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("You have already reviewed this booking")
		}
		return nil, err
	}
	if err := db.Preload("Customer").Preload("Service").First(review, "id = ?", review.ID).Error; err != nil {
		return nil, err
	}
	return review, nil
}

// Get loads one review with its customer and service.
func (s *ReviewService) Get(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).Preload("Customer").Preload("Service").First(&review, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Review not found")
		}
		return nil, err
	}
	return &review, nil
}

// MarkHelpful increments the helpful counter in place.
func (s *ReviewService) MarkHelpful(ctx context.Context, id string) (*models.Review, error) {
	res := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("id = ? AND status = ?", id, models.ReviewApproved).
		UpdateColumn("helpful", gorm.Expr("helpful + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperror.NotFound("Review not found")
	}
	return s.Get(ctx, id)
}

// SetStatus approves or rejects a review.
func (s *ReviewService) SetStatus(ctx context.Context, subject policy.Subject, id string, status models.ReviewStatus) (*models.Review, error) {
	if err := s.authz.Authorize(subject, policy.ReviewModerate, nil); err != nil {
		return nil, err
	}
	if status != models.ReviewApproved && status != models.ReviewRejected && status != models.ReviewPending {
		return nil, apperror.Field("status", "status must be one of: pending, approved, rejected")
	}
	res := s.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Respond records the shop's public answer.
func (s *ReviewService) Respond(ctx context.Context, subject policy.Subject, id string, text models.LocalizedText) (*models.Review, error) {
	if err := s.authz.Authorize(subject, policy.ReviewModerate, nil); err != nil {
		return nil, err
	}
	if text.IsZero() {
		return nil, apperror.Field("text", "Response text is required")
	}
	review, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	review.Response = models.ReviewResponse{Text: text, RespondedBy: &subject.ID, RespondedAt: &now}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

// Delete removes a review.
func (s *ReviewService) Delete(ctx context.Context, subject policy.Subject, id string) error {
	if err := s.authz.Authorize(subject, policy.ReviewModerate, nil); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Review{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Review not found")
	}
	return nil
}

// ServiceRating aggregates the approved reviews of one service.
func (s *ReviewService) ServiceRating(ctx context.Context, serviceID string) (models.RatingSummary, error) {
	ratings, err := s.ServiceRatings(ctx, []string{serviceID})
	if err != nil {
		return models.RatingSummary{}, err
	}
	return ratings[serviceID], nil
}

// ServiceRatings aggregates approved reviews for several services at once.
// Services without reviews are absent from the map.
func (s *ReviewService) ServiceRatings(ctx context.Context, serviceIDs []string) (map[string]models.RatingSummary, error) {
	out := make(map[string]models.RatingSummary, len(serviceIDs))
	if len(serviceIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ServiceID string
		Average   float64
		Count     int64
	}
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("service_id, AVG(rating_overall) AS average, COUNT(*) AS count").
		Where("service_id IN ? AND status = ?", serviceIDs, models.ReviewApproved).
		Group("service_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ServiceID] = models.RatingSummary{Average: roundRating(r.Average), Count: r.Count}
	}
	return out, nil
}

// RatingDistribution counts approved reviews per overall score for a service.
func (s *ReviewService) RatingDistribution(ctx context.Context, serviceID string) (map[int]int64, error) {
	var rows []struct {
		Score int
		Count int64
	}
	q := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("rating_overall AS score, COUNT(*) AS count").
		Where("status = ?", models.ReviewApproved)
	if serviceID != "" {
		q = q.Where("service_id = ?", serviceID)
	}
	if err := q.Group("rating_overall").Scan(&rows).Error; err != nil {
		return nil, err
	}
	dist := map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for _, r := range rows {
		dist[r.Score] = r.Count
	}
	return dist, nil
}

func roundRating(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
