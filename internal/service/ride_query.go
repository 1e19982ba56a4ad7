package service

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"goride/internal/domain"
)

const (
	recentEarningsLimit = 10
	recentStatsLimit    = 5
)

// ListAvailable returns rides waiting for a driver, newest first.
func (s *RideService) ListAvailable(ctx context.Context) ([]*domain.Ride, error) {
	return s.rideRepo.ListByStatus(ctx, domain.RideStatusRequested)
}

// ListRiderRides returns a rider's rides, newest first.
func (s *RideService) ListRiderRides(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	if riderID == "" {
		return nil, invalidInput("rider id is required")
	}
	return s.rideRepo.ListByRider(ctx, riderID)
}

// GetRide returns a ride to its owner.
func (s *RideService) GetRide(ctx context.Context, rideID, riderID string) (*domain.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideOwner
	}
	return ride, nil
}

// DriverHistory summarises every ride assigned to a driver.
type DriverHistory struct {
	TotalRides     int             `json:"totalRides"`
	CompletedRides int             `json:"completedRides"`
	TotalEarnings  decimal.Decimal `json:"totalEarnings"`
	AverageRating  float64         `json:"averageRating"`
	Rides          []*domain.Ride  `json:"rides"`
}

// DriverHistory returns the driver's ride history with totals.
func (s *RideService) DriverHistory(ctx context.Context, driverUserID string) (*DriverHistory, error) {
	driver, err := s.driverByUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	rides, err := s.rideRepo.ListByDriver(ctx, driver.ID)
	if err != nil {
		return nil, err
	}

	completed := filterStatus(rides, domain.RideStatusCompleted)
	return &DriverHistory{
		TotalRides:     len(rides),
		CompletedRides: len(completed),
		TotalEarnings:  sumFares(completed),
		AverageRating:  averageRating(completed),
		Rides:          rides,
	}, nil
}

// DriverActiveRides returns the rides the driver is currently working.
func (s *RideService) DriverActiveRides(ctx context.Context, driverUserID string) ([]*domain.Ride, error) {
	driver, err := s.driverByUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	return s.rideRepo.ListByDriver(ctx, driver.ID, domain.ActiveStatuses...)
}

// EarningsWindow is the fare total and ride count for one period.
type EarningsWindow struct {
	Earnings decimal.Decimal `json:"earnings"`
	Rides    int             `json:"rides"`
}

// DriverEarnings breaks a driver's completed fares down by period.
type DriverEarnings struct {
	Today   EarningsWindow `json:"today"`
	Week    EarningsWindow `json:"week"`
	Month   EarningsWindow `json:"month"`
	AllTime EarningsWindow `json:"allTime"`
	Recent  []*domain.Ride `json:"recent"`
}

// DriverEarnings sums completed fares for today, this week (from Sunday), this month and all time.
// Periods are keyed on completion time in the configured time zone.
func (s *RideService) DriverEarnings(ctx context.Context, driverUserID string) (*DriverEarnings, error) {
	driver, err := s.driverByUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	completed, err := s.rideRepo.ListByDriver(ctx, driver.ID, domain.RideStatusCompleted)
	if err != nil {
		return nil, err
	}

	today, week, month := periodStarts(s.now(), s.tz)
	out := &DriverEarnings{
		Today:   EarningsWindow{Earnings: decimal.Zero},
		Week:    EarningsWindow{Earnings: decimal.Zero},
		Month:   EarningsWindow{Earnings: decimal.Zero},
		AllTime: EarningsWindow{Earnings: decimal.Zero},
		Recent:  limit(completed, recentEarningsLimit),
	}
	for _, ride := range completed {
		done := ride.Timestamps.CompletedAt
		out.AllTime.add(ride.Fare)
		if !done.Before(month) {
			out.Month.add(ride.Fare)
		}
		if !done.Before(week) {
			out.Week.add(ride.Fare)
		}
		if !done.Before(today) {
			out.Today.add(ride.Fare)
		}
	}
	return out, nil
}

// DriverStats is the dashboard summary for a driver.
type DriverStats struct {
	TodayEarnings decimal.Decimal `json:"todayEarnings"`
	TodayRides    int             `json:"todayRides"`
	TotalRides    int             `json:"totalRides"`
	AverageRating float64         `json:"averageRating"`
	RecentRides   []*domain.Ride  `json:"recentRides"`
}

// DriverStats returns today's totals, lifetime completed rides, rating and the latest rides.
func (s *RideService) DriverStats(ctx context.Context, driverUserID string) (*DriverStats, error) {
	driver, err := s.driverByUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	rides, err := s.rideRepo.ListByDriver(ctx, driver.ID)
	if err != nil {
		return nil, err
	}

	completed := filterStatus(rides, domain.RideStatusCompleted)
	today, _, _ := periodStarts(s.now(), s.tz)
	stats := &DriverStats{
		TodayEarnings: decimal.Zero,
		TotalRides:    len(completed),
		AverageRating: averageRating(completed),
		RecentRides:   limit(rides, recentStatsLimit),
	}
	for _, ride := range completed {
		if !ride.Timestamps.CompletedAt.Before(today) {
			stats.TodayEarnings = stats.TodayEarnings.Add(ride.Fare)
			stats.TodayRides++
		}
	}
	return stats, nil
}

func (s *RideService) driverByUser(ctx context.Context, driverUserID string) (*domain.Driver, error) {
	if driverUserID == "" {
		return nil, invalidInput("driver id is required")
	}
	driver, err := s.driverRepo.GetByUserID(ctx, driverUserID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	return driver, nil
}

func (w *EarningsWindow) add(fare decimal.Decimal) {
	w.Earnings = w.Earnings.Add(fare)
	w.Rides++
}

// periodStarts returns local midnight today, the preceding Sunday and the first of the month.
func periodStarts(now time.Time, tz *time.Location) (today, week, month time.Time) {
	local := now.In(tz)
	today = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
	week = today.AddDate(0, 0, -int(today.Weekday()))
	month = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, tz)
	return today, week, month
}

func filterStatus(rides []*domain.Ride, status domain.RideStatus) []*domain.Ride {
	out := make([]*domain.Ride, 0, len(rides))
	for _, r := range rides {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func sumFares(rides []*domain.Ride) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rides {
		total = total.Add(r.Fare)
	}
	return total
}

// averageRating averages over completed rides, unrated ones counting as zero,
// rounded to one decimal place.
func averageRating(completed []*domain.Ride) float64 {
	if len(completed) == 0 {
		return 0
	}
	sum := 0
	for _, r := range completed {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(completed))
	return math.Round(avg*10) / 10
}

func limit(rides []*domain.Ride, n int) []*domain.Ride {
	if len(rides) > n {
		return rides[:n]
	}
	return rides
}
