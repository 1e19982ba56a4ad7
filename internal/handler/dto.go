package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"goride/internal/domain"
)

// LocationDTO is a place on the wire.
type LocationDTO struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (l LocationDTO) toDomain() domain.Location {
	return domain.Location{Address: l.Address, Lat: l.Lat, Lng: l.Lng}
}

func locationDTO(l domain.Location) LocationDTO {
	return LocationDTO{Address: l.Address, Lat: l.Lat, Lng: l.Lng}
}

// DriverRefDTO identifies the driver on a ride by both record id and user id.
type DriverRefDTO struct {
	DriverID string `json:"driverId"`
	UserID   string `json:"userId"`
}

func driverRefDTO(r domain.DriverRef) *DriverRefDTO {
	if r.IsZero() {
		return nil
	}
	return &DriverRefDTO{DriverID: r.DriverID, UserID: r.UserID}
}

// TimestampsDTO holds one timestamp per status the ride reached.
type TimestampsDTO struct {
	RequestedAt *time.Time `json:"requestedAt,omitempty"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	PickedUpAt  *time.Time `json:"pickedUpAt,omitempty"`
	InTransitAt *time.Time `json:"inTransitAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// RideResponse is a ride on the wire.
type RideResponse struct {
	ID            string          `json:"id"`
	RiderID       string          `json:"riderId"`
	Driver        *DriverRefDTO   `json:"driver,omitempty"`
	RejectedBy    *DriverRefDTO   `json:"rejectedBy,omitempty"`
	Pickup        LocationDTO     `json:"pickupLocation"`
	Destination   LocationDTO     `json:"destinationLocation"`
	Fare          decimal.Decimal `json:"fare"`
	Status        string          `json:"status"`
	IsPaid        bool            `json:"isPaid"`
	PaymentMethod string          `json:"paymentMethod"`
	Rating        int             `json:"rating,omitempty"`
	Timestamps    TimestampsDTO   `json:"timestamps"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func rideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:            r.ID,
		RiderID:       r.RiderID,
		Driver:        driverRefDTO(r.Driver),
		RejectedBy:    driverRefDTO(r.RejectedBy),
		Pickup:        locationDTO(r.Pickup),
		Destination:   locationDTO(r.Destination),
		Fare:          r.Fare,
		Status:        string(r.Status),
		IsPaid:        r.IsPaid,
		PaymentMethod: string(r.PaymentMethod),
		Rating:        r.Rating,
		Timestamps: TimestampsDTO{
			RequestedAt: timePtr(r.Timestamps.RequestedAt),
			AcceptedAt:  timePtr(r.Timestamps.AcceptedAt),
			PickedUpAt:  timePtr(r.Timestamps.PickedUpAt),
			InTransitAt: timePtr(r.Timestamps.InTransitAt),
			CompletedAt: timePtr(r.Timestamps.CompletedAt),
			CancelledAt: timePtr(r.Timestamps.CancelledAt),
		},
		CreatedAt: r.CreatedAt,
	}
}

func rideResponses(rides []*domain.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, rideResponse(r))
	}
	return out
}

// DriverResponse is a driver profile on the wire.
type DriverResponse struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	VehicleType  string          `json:"vehicleType"`
	VehiclePlate string          `json:"vehiclePlate"`
	Approval     string          `json:"approvalStatus"`
	Availability string          `json:"availability"`
	Earnings     decimal.Decimal `json:"earnings"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func driverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:           d.ID,
		UserID:       d.UserID,
		VehicleType:  d.Vehicle.Type,
		VehiclePlate: d.Vehicle.Plate,
		Approval:     string(d.Approval),
		Availability: string(d.Availability),
		Earnings:     d.Earnings,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// PaymentResponse is a payment on the wire. Gateway data stays server side.
type PaymentResponse struct {
	ID            string          `json:"id"`
	RideID        string          `json:"rideId,omitempty"`
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceURL    string          `json:"invoiceUrl,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func paymentResponse(p *domain.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		ID:            p.ID,
		RideID:        p.RideID,
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		Amount:        p.Amount,
		InvoiceURL:    p.InvoiceURL,
		UpdatedAt:     p.UpdatedAt,
	}
}
