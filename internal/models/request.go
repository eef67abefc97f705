package models

import (
	"time"
)

// Request status constants
const (
	RequestStatusOpen        = "open"
	RequestStatusNegotiating = "negotiating"
	RequestStatusMatched     = "matched"
	RequestStatusCompleted   = "completed"
	RequestStatusCancelled   = "cancelled"
)

// Request types
const (
	RequestTypeTransport = "transport"
	RequestTypeParcel    = "parcel"
)

// Request origins
const (
	CreatedByRequester = "requester"
	CreatedByOperator  = "operator"
)

// Valid request state transitions
var ValidRequestTransitions = map[string][]string{
	RequestStatusOpen:        {RequestStatusNegotiating, RequestStatusCancelled},
	RequestStatusNegotiating: {RequestStatusOpen, RequestStatusMatched, RequestStatusCancelled},
	RequestStatusMatched:     {RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusCompleted:   {},
	RequestStatusCancelled:   {},
}

// Operator-originated requests skip negotiation: reaching the claim cap
// completes them straight from open.
var operatorRequestTransitions = map[string][]string{
	RequestStatusOpen: {RequestStatusCompleted, RequestStatusCancelled},
}

type Request struct {
	ID                  string              `db:"id" json:"id"`
	RequesterRef        int64               `db:"requester_ref" json:"requester_ref"`
	Origin              string              `db:"origin" json:"origin"`
	Destination         string              `db:"destination" json:"destination"`
	RouteKey            string              `db:"route_key" json:"route_key"`
	DesiredTime         string              `db:"desired_time" json:"desired_time"`
	Seats               int                 `db:"seats" json:"seats,omitempty"`
	PackageKind         string              `db:"package_kind" json:"package_kind,omitempty"`
	Type                string              `db:"type" json:"type"`
	LocationDetail      string              `db:"location_detail" json:"location_detail,omitempty"`
	VoiceRef            *string             `db:"voice_ref" json:"voice_ref,omitempty"`
	PhotoRef            *string             `db:"photo_ref" json:"photo_ref,omitempty"`
	ContactPhone        *string             `db:"contact_phone" json:"contact_phone,omitempty"`
	Status              string              `db:"status" json:"status"`
	ClaimCount          int                 `db:"claim_count" json:"claim_count"`
	CreatedBy           string              `db:"created_by" json:"created_by"`
	Offers              OfferLog            `db:"offers" json:"offers"`
	BlockedCarriers     BlockList           `db:"blocked_carriers" json:"blocked_carriers"`
	NotificationHandles NotificationHandles `db:"notification_handles" json:"notification_handles"`
	Version             int64               `db:"version" json:"version"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// NotificationHandle points at a fan-out message so it can be retracted later.
type NotificationHandle struct {
	CarrierRef int64 `json:"carrier_ref"`
	MessageRef int   `json:"message_ref"`
}

type CreateRequestInput struct {
	RequesterRef   int64  `json:"requester_ref"`
	Origin         string `json:"origin" validate:"required,min=2,max=64"`
	Destination    string `json:"destination" validate:"required,min=2,max=64,nefield=Origin"`
	DesiredTime    string `json:"desired_time" validate:"required,max=64"`
	Type           string `json:"type" validate:"required,oneof=transport parcel"`
	Seats          int    `json:"seats" validate:"required_if=Type transport,min=0,max=8"`
	PackageKind    string `json:"package_kind" validate:"required_if=Type parcel,max=64"`
	LocationDetail string `json:"location_detail" validate:"max=512"`
	VoiceRef       string `json:"voice_ref,omitempty"`
	PhotoRef       string `json:"photo_ref,omitempty"`
	ContactPhone   string `json:"contact_phone" validate:"required_if=CreatedBy operator,max=20"`
	CreatedBy      string `json:"created_by" validate:"required,oneof=requester operator"`
}

type RequestResponse struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	Type           string           `json:"type"`
	Origin         string           `json:"origin"`
	Destination    string           `json:"destination"`
	DesiredTime    string           `json:"desired_time"`
	Seats          int              `json:"seats,omitempty"`
	PackageKind    string           `json:"package_kind,omitempty"`
	LocationDetail string           `json:"location_detail,omitempty"`
	CreatedBy      string           `json:"created_by"`
	ClaimCount     int              `json:"claim_count"`
	Offers         []*OfferResponse `json:"offers"`
	Notified       int              `json:"notified_carriers"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (r *Request) ToResponse() *RequestResponse {
	resp := &RequestResponse{
		ID:             r.ID,
		Status:         r.Status,
		Type:           r.Type,
		Origin:         r.Origin,
		Destination:    r.Destination,
		DesiredTime:    r.DesiredTime,
		Seats:          r.Seats,
		PackageKind:    r.PackageKind,
		LocationDetail: r.LocationDetail,
		CreatedBy:      r.CreatedBy,
		ClaimCount:     r.ClaimCount,
		Offers:         make([]*OfferResponse, 0, len(r.Offers)),
		Notified:       len(r.NotificationHandles),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	for i := range r.Offers {
		resp.Offers = append(resp.Offers, r.Offers[i].ToResponse())
	}
	return resp
}

// CanTransitionTo checks if a request can move to a new status
func (r *Request) CanTransitionTo(newStatus string) bool {
	if contains(ValidRequestTransitions[r.Status], newStatus) {
		return true
	}
	if r.CreatedBy == CreatedByOperator {
		return contains(operatorRequestTransitions[r.Status], newStatus)
	}
	return false
}

// IsActive returns true if the request is not in a terminal state
func (r *Request) IsActive() bool {
	return r.Status != RequestStatusCompleted && r.Status != RequestStatusCancelled
}

func (r *Request) IsOperatorOriginated() bool {
	return r.CreatedBy == CreatedByOperator
}

// FindOffer looks an offer up by id, never by position.
func (r *Request) FindOffer(offerID string) *Offer {
	for i := range r.Offers {
		if r.Offers[i].ID == offerID {
			return &r.Offers[i]
		}
	}
	return nil
}

func (r *Request) PendingBid() *Offer {
	for i := range r.Offers {
		if r.Offers[i].Kind == OfferKindBid && r.Offers[i].Status == OfferStatusPending {
			return &r.Offers[i]
		}
	}
	return nil
}

func (r *Request) AcceptedBid() *Offer {
	for i := range r.Offers {
		if r.Offers[i].Kind == OfferKindBid && r.Offers[i].Status == OfferStatusAccepted {
			return &r.Offers[i]
		}
	}
	return nil
}

func (r *Request) HasClaimed(carrierRef int64) bool {
	for i := range r.Offers {
		if r.Offers[i].Kind == OfferKindClaim && r.Offers[i].CarrierRef == carrierRef {
			return true
		}
	}
	return false
}

// Clone returns a deep copy; stores hand out clones so callers never share
// slices with the persisted document.
func (r *Request) Clone() *Request {
	c := *r
	c.Offers = append(OfferLog(nil), r.Offers...)
	c.BlockedCarriers = make(BlockList, len(r.BlockedCarriers))
	for i, b := range r.BlockedCarriers {
		c.BlockedCarriers[i] = b
		if b.BlockedUntil != nil {
			until := *b.BlockedUntil
			c.BlockedCarriers[i].BlockedUntil = &until
		}
	}
	c.NotificationHandles = append(NotificationHandles(nil), r.NotificationHandles...)
	return &c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
