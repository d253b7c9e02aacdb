package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/okian/gigledger/internal/adapters/ledger"
	"github.com/okian/gigledger/internal/adapters/mq/publisher"
	"github.com/okian/gigledger/internal/domain/model"
	"github.com/okian/gigledger/internal/domain/units"
	"github.com/okian/gigledger/pkg/logger"
)

// Reputation records reviews and reads the ledger's aggregate ratings.
type Reputation struct {
	core *core
}

// CreateReview records a review of reviewee on a project. rating is scaled by
// ten and passed through as is; the ledger decides which values it accepts.
func (r *Reputation) CreateReview(ctx context.Context, projectID, reviewee string, rating uint64, comment string) (string, error) {
	if err := r.core.ready(); err != nil {
		return "", err
	}
	pid, err := parseID("project_id", projectID)
	if err != nil {
		return "", err
	}
	who, err := parseAddress("reviewee", reviewee)
	if err != nil {
		return "", err
	}

	conf, err := r.core.gateway.Submit(ctx, ledger.Reputation, "submitReview", nil,
		pid, who, new(big.Int).SetUint64(rating), comment)
	if err != nil {
		return "", err
	}
	id, err := conf.EventID("NewReview", "reviewId")
	if err != nil {
		r.core.logger.Error(ctx, "review confirmed without identifier",
			logger.String("tx", conf.TxHash.Hex()), logger.Error(err))
		return "", err
	}

	r.core.publish(ctx, publisher.ReviewCreated, conf, map[string]any{
		"review_id":  units.ID(id),
		"project_id": units.ID(pid),
		"reviewee":   who.Hex(),
		"rating":     rating,
	})
	return units.ID(id), nil
}

// GetUserReviews reads every review received by address.
func (r *Reputation) GetUserReviews(ctx context.Context, addr string) ([]model.Review, error) {
	if err := r.core.ready(); err != nil {
		return nil, err
	}
	who, err := parseAddress("address", addr)
	if err != nil {
		return nil, err
	}
	out, err := r.core.gateway.Query(ctx, ledger.Reputation, "getUserReviews", who)
	if err != nil {
		return nil, err
	}

	d := out.Decode()
	ids := d.BigInts()
	projects := d.BigInts()
	reviewers := d.Addresses()
	reviewees := d.Addresses()
	ratings := d.BigInts()
	comments := d.Strings()
	timestamps := d.BigInts()
	if err := d.Err(); err != nil {
		return nil, err
	}
	n := len(ids)
	for _, l := range []int{len(projects), len(reviewers), len(reviewees), len(ratings), len(comments), len(timestamps)} {
		if l != n {
			return nil, fmt.Errorf("%w: review columns of unequal length", ledger.ErrDecode)
		}
	}

	reviews := make([]model.Review, n)
	for i := range reviews {
		if ratings[i] == nil || !ratings[i].IsUint64() {
			return nil, fmt.Errorf("%w: review %d rating %s overflows uint64", ledger.ErrDecode, i, ratings[i])
		}
		ts, err := units.Time(timestamps[i])
		if err != nil {
			return nil, fmt.Errorf("%w: review %d: %w", ledger.ErrDecode, i, err)
		}
		reviews[i] = model.Review{
			ID:        units.ID(ids[i]),
			ProjectID: units.ID(projects[i]),
			Reviewer:  address(reviewers[i]),
			Reviewee:  address(reviewees[i]),
			Rating:    ratings[i].Uint64(),
			Comment:   comments[i],
			Timestamp: ts,
		}
	}
	return reviews, nil
}

// GetUserAverageRating returns the ledger's mean rating of address divided
// by ten: a raw 47 is 4.7.
func (r *Reputation) GetUserAverageRating(ctx context.Context, addr string) (float64, error) {
	if err := r.core.ready(); err != nil {
		return 0, err
	}
	who, err := parseAddress("address", addr)
	if err != nil {
		return 0, err
	}
	out, err := r.core.gateway.Query(ctx, ledger.Reputation, "getUserAverageRating", who)
	if err != nil {
		return 0, err
	}
	d := out.Decode()
	raw := d.BigInt()
	if err := d.Err(); err != nil {
		return 0, err
	}
	return units.Rating(raw), nil
}
