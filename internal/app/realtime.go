package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goride/internal/config"
	"goride/internal/domain"
	"goride/internal/realtime"
	"goride/internal/redis"
	"goride/internal/service"
)

// MessageDriverLocation is sent by drivers over the socket to share their position.
const MessageDriverLocation = "driver-location-update"

// Realtime is the websocket hub and the notifier feeding it.
type Realtime struct {
	Hub       *realtime.Hub
	Notifier  *service.NotificationService
	bus       redis.EventBusInterface
	locations redis.LocationStoreInterface
	logger    *zap.Logger
}

// NewRealtime wires the hub and its sinks. With cfg.UseRedisBus the notifier publishes only to
// Redis and every instance's hub receives through its subscription, otherwise it publishes to the
// local hub directly.
func NewRealtime(cfg config.RealtimeConfig, rdb *goredis.Client, auth realtime.AuthFunc, logger *zap.Logger) *Realtime {
	rt := &Realtime{
		Hub:    realtime.NewHub(auth, logger),
		logger: logger,
	}

	var sinks []service.EventSink
	if rdb != nil {
		rt.locations = redis.NewLocationStore(rdb, cfg.LocationTTL)
		if cfg.UseRedisBus {
			rt.bus = redis.NewEventBus(rdb, logger)
			sinks = append(sinks, rt.bus)
		}
		sinks = append(sinks, rt.locations)
	}
	if rt.bus == nil {
		sinks = append(sinks, rt.Hub)
	}
	rt.Notifier = service.NewNotificationService(logger, sinks...)

	rt.Hub.SetMessageHandler(rt.handleMessage)
	rt.Hub.SetJoinHook(rt.sendLastLocation)
	return rt
}

// Start runs the hub and, in bus mode, the Redis subscription until ctx is done.
func (rt *Realtime) Start(ctx context.Context) error {
	go rt.Hub.Run(ctx)
	if rt.bus == nil {
		return nil
	}
	return rt.bus.Subscribe(ctx, rt.Hub.Publish)
}

type locationUpdate struct {
	RideID string `json:"rideId"`
}

func (rt *Realtime) handleMessage(client *realtime.Client, msgType string, data json.RawMessage) error {
	if msgType != MessageDriverLocation {
		return nil
	}
	if client.Role != string(domain.RoleDriver) {
		return errors.New("only drivers can share location")
	}

	var update locationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return err
	}
	rideID := strings.TrimSpace(update.RideID)
	if rideID == "" {
		return errors.New("rideId is required")
	}

	rt.Notifier.RelayDriverLocation(context.Background(), rideID, client.ID, data)
	return nil
}

func (rt *Realtime) sendLastLocation(client *realtime.Client, rideID string) {
	if rt.locations == nil {
		return
	}
	last, ok, err := rt.locations.Last(context.Background(), rideID)
	if err != nil {
		rt.logger.Debug("load last location", zap.String("ride_id", rideID), zap.Error(err))
		return
	}
	if ok {
		client.SendFrame(service.EventDriverLocationChanged, last)
	}
}
