// Package user records who has talked to the bot.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_assistant_bot/internal/logging"
)

// Profile is the sender identity carried by an update.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
}

type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar upserts a users document per sender and keeps its last-seen
// timestamp and names current on every interaction.
type Registrar struct {
	users  userCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// EnsureUser upserts the user record and reports whether it was created.
// Username and first name are only overwritten when the update carries them.
func (r *Registrar) EnsureUser(ctx context.Context, profile Profile) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if profile.UserID == 0 {
		return false, errors.New("user id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	set := bson.M{
		"updated_at":   now,
		"last_seen_at": now,
	}
	if name := strings.TrimSpace(profile.Username); name != "" {
		set["username"] = name
	}
	if name := strings.TrimSpace(profile.FirstName); name != "" {
		set["first_name"] = name
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"user_id":    profile.UserID,
			"created_at": now,
		},
		"$inc": bson.M{"interactions": 1},
	}

	result, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": profile.UserID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "user_registered",
			"user_id": profile.UserID,
		}).Info("registered new user")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_seen",
		"user_id": profile.UserID,
	}).Debug("updated user last seen")

	return false, nil
}
