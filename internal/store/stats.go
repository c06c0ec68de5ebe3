package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider answers registry counts without leaking MongoDB internals to
// callers.
type StatsProvider struct {
	users countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the users collection.
func NewStatsProvider(users countCollection) *StatsProvider {
	return &StatsProvider{users: users}
}

// CountUsers returns the number of users the bot has seen.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	return p.count(ctx, bson.D{})
}

// CountActiveSince returns the number of users seen at or after since.
func (p *StatsProvider) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return p.count(ctx, bson.D{{Key: "last_seen_at", Value: bson.D{{Key: "$gte", Value: since.UTC()}}}})
}

func (p *StatsProvider) count(ctx context.Context, filter bson.D) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.users.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}
