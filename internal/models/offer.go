package models

import (
	"time"
)

// Offer kinds. Bids and claim markers share one append-only log.
const (
	OfferKindBid   = "bid"
	OfferKindClaim = "claim"
)

// Offer status constants
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
)

type Offer struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	CarrierRef int64     `json:"carrier_ref"`
	Price      int64     `json:"price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type OfferResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	CarrierRef int64     `json:"carrier_ref"`
	Price      int64     `json:"price,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewBid builds a pending priced offer.
func NewBid(id string, carrierRef, price int64, now time.Time) Offer {
	return Offer{
		ID:         id,
		Kind:       OfferKindBid,
		CarrierRef: carrierRef,
		Price:      price,
		Status:     OfferStatusPending,
		CreatedAt:  now,
	}
}

// NewClaimMarker records a fast claim. Markers carry no price and are
// accepted on creation.
func NewClaimMarker(id string, carrierRef int64, now time.Time) Offer {
	return Offer{
		ID:         id,
		Kind:       OfferKindClaim,
		CarrierRef: carrierRef,
		Status:     OfferStatusAccepted,
		CreatedAt:  now,
	}
}

func (o *Offer) IsPending() bool {
	return o.Status == OfferStatusPending
}

func (o *Offer) ToResponse() *OfferResponse {
	return &OfferResponse{
		ID:         o.ID,
		Kind:       o.Kind,
		CarrierRef: o.CarrierRef,
		Price:      o.Price,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
	}
}
