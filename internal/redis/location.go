package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"goride/internal/service"
)

const (
	rideLocationKeyPrefix = "ride:location:"
	defaultLocationTTL    = 10 * time.Minute
)

// LocationStore remembers the last driver location relayed to each ride room.
// It is ephemeral and never consulted by ride state.
type LocationStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client redis.Cmdable, ttl time.Duration) *LocationStore {
	if ttl <= 0 {
		ttl = defaultLocationTTL
	}
	return &LocationStore{client: client, ttl: ttl}
}

// Publish records driver-location-changed events and ignores the rest.
func (s *LocationStore) Publish(ctx context.Context, env service.Envelope) error {
	if env.Event != service.EventDriverLocationChanged {
		return nil
	}
	rideID, ok := rideIDFromChannel(env.Channel)
	if !ok {
		return nil
	}
	return s.client.Set(ctx, rideLocationKey(rideID), []byte(env.Payload), s.ttl).Err()
}

// Last returns the last location relayed for a ride, if it has not expired.
func (s *LocationStore) Last(ctx context.Context, rideID string) (json.RawMessage, bool, error) {
	raw, err := s.client.Get(ctx, rideLocationKey(rideID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

func rideLocationKey(rideID string) string {
	return rideLocationKeyPrefix + rideID
}

func rideIDFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, "ride-")
	return id, ok && id != ""
}
