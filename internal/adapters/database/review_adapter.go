package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

const reviewsTable = "reviews"

var reviewColumns = []any{"id", "review", "rating", "listing_id", "user_id", "created_at", "updated_at"}

// ReviewAdapter implements review persistence in Postgres
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a review record
func (a *ReviewAdapter) Create(ctx context.Context, review *entities.Review) error {
	record := goqu.Record{
		"id":         review.ID,
		"review":     review.Review,
		"rating":     review.Rating,
		"listing_id": review.ListingID,
		"user_id":    review.UserID,
		"created_at": review.CreatedAt,
		"updated_at": review.UpdatedAt,
	}

	query, args, err := a.db.Insert(reviewsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build review insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return apperrors.NewConflictError("You have already given review for this PG.")
		}
		return apperrors.NewInternalError("failed to create review", err)
	}
	return nil
}

// GetByID retrieves a review
func (a *ReviewAdapter) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	query, args, err := a.db.From(reviewsTable).Prepared(true).
		Select(reviewColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build review query", err)
	}

	review, err := scanReview(a.client.DB().QueryRowContext(ctx, query, args...))
	if isMissing(err) {
		return nil, apperrors.NewNotFoundError("No review found with that ID")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get review", err)
	}
	return review, nil
}

// ListByListing pages through a listing's reviews, newest first
func (a *ReviewAdapter) ListByListing(ctx context.Context, listingID string, limit, offset int) ([]*entities.Review, error) {
	query, args, err := a.db.From(reviewsTable).Prepared(true).
		Select(reviewColumns...).
		Where(goqu.C("listing_id").Eq(listingID)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build review list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list reviews", err)
	}
	defer rows.Close()

	reviews := make([]*entities.Review, 0, limit)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating reviews", err)
	}
	return reviews, nil
}

// UpdateOwned changes rating and text of a review the user wrote and refreshes it from the row
func (a *ReviewAdapter) UpdateOwned(ctx context.Context, review *entities.Review) error {
	query, args, err := a.db.Update(reviewsTable).Prepared(true).
		Set(goqu.Record{
			"review":     review.Review,
			"rating":     review.Rating,
			"updated_at": review.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(review.ID), goqu.C("user_id").Eq(review.UserID)).
		Returning(reviewColumns...).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build review update query", err)
	}

	updated, err := scanReview(a.client.DB().QueryRowContext(ctx, query, args...))
	if isMissing(err) {
		return apperrors.NewBadRequestError("Invalid Request")
	}
	if err != nil {
		return apperrors.NewInternalError("failed to update review", err)
	}
	*review = *updated
	return nil
}

// DeleteOwned removes a review the user wrote and returns its listing id
func (a *ReviewAdapter) DeleteOwned(ctx context.Context, id, userID string) (string, error) {
	query, args, err := a.db.Delete(reviewsTable).Prepared(true).
		Where(goqu.C("id").Eq(id), goqu.C("user_id").Eq(userID)).
		Returning("listing_id").
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build review delete query", err)
	}

	var listingID string
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&listingID)
	if isMissing(err) {
		return "", apperrors.NewBadRequestError("Invalid Request")
	}
	if err != nil {
		return "", apperrors.NewInternalError("failed to delete review", err)
	}
	return listingID, nil
}

// Summary aggregates the ratings of a listing
func (a *ReviewAdapter) Summary(ctx context.Context, listingID string) (entities.RatingSummary, error) {
	query, args, err := a.db.From(reviewsTable).Prepared(true).
		Select(goqu.COALESCE(goqu.AVG("rating"), 0), goqu.COUNT(goqu.Star())).
		Where(goqu.C("listing_id").Eq(listingID)).
		ToSQL()
	if err != nil {
		return entities.RatingSummary{}, apperrors.NewInternalError("failed to build rating query", err)
	}

	var (
		avg   float64
		count int
	)
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&avg, &count); err != nil {
		return entities.RatingSummary{}, apperrors.NewInternalError("failed to aggregate ratings", err)
	}
	return entities.NewRatingSummary(avg, count), nil
}

func scanReview(row rowScanner) (*entities.Review, error) {
	var r entities.Review
	if err := row.Scan(&r.ID, &r.Review, &r.Rating, &r.ListingID, &r.UserID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
