package models

import (
	"time"
)

// Profile roles
const (
	RoleRequester = "requester"
	RoleCarrier   = "carrier"
)

// Approval status constants
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Profile is a chat user known to the service. Carriers are pinned to a
// route key and only receive requests on that route while online.
type Profile struct {
	ID             int64     `db:"id" json:"id"`
	Role           string    `db:"role" json:"role"`
	Name           string    `db:"name" json:"name"`
	Phone          string    `db:"phone" json:"phone"`
	CarModel       string    `db:"car_model" json:"car_model,omitempty"`
	Route          string    `db:"route" json:"route,omitempty"`
	Online         bool      `db:"online" json:"online"`
	ApprovalStatus string    `db:"approval_status" json:"approval_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CarrierFilter selects carriers for fan-out. Empty fields match anything.
type CarrierFilter struct {
	Online         *bool
	ApprovalStatus string
	Route          string
	Model          string
}

func (p *Profile) IsCarrier() bool {
	return p.Role == RoleCarrier
}

func (p *Profile) IsApproved() bool {
	return p.ApprovalStatus == ApprovalApproved
}

// Matches reports whether the profile satisfies every set field of f.
func (f CarrierFilter) Matches(p *Profile) bool {
	if !p.IsCarrier() {
		return false
	}
	if f.Online != nil && p.Online != *f.Online {
		return false
	}
	if f.ApprovalStatus != "" && p.ApprovalStatus != f.ApprovalStatus {
		return false
	}
	if f.Route != "" && p.Route != f.Route {
		return false
	}
	if f.Model != "" && p.CarModel != f.Model {
		return false
	}
	return true
}

// Route is one configured origin/destination pair.
type Route struct {
	Key         string `json:"key"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}
