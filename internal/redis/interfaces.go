package redis

import (
	"context"
	"encoding/json"

	"goride/internal/service"
)

// LocationStoreInterface defines the last-known driver location lookup used when a
// client joins a ride room.
type LocationStoreInterface interface {
	service.EventSink
	Last(ctx context.Context, rideID string) (json.RawMessage, bool, error)
}

// EventBusInterface defines cross-instance event delivery.
type EventBusInterface interface {
	service.EventSink
	Subscribe(ctx context.Context, deliver func(ctx context.Context, env service.Envelope) error) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ EventBusInterface      = (*EventBus)(nil)
)
