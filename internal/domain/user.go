package domain

import "time"

// Role is the account role supplied by the identity provider.
type Role string

const (
	RoleRider  Role = "RIDER"
	RoleDriver Role = "DRIVER"
	RoleAdmin  Role = "ADMIN"
)

// User is an account known to the identity provider. The core only reads it.
type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Address   string
	Role      Role
	CreatedAt time.Time
}
