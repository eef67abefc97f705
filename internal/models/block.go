package models

import (
	"time"
)

// BlockEntry tracks how often a carrier's offers were declined on one request.
// DeclineCount never resets; only BlockedUntil lapses.
type BlockEntry struct {
	CarrierRef   int64      `json:"carrier_ref"`
	DeclineCount int        `json:"decline_count"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// IsBlocked reports whether the carrier is inside an active cool-down.
func (b *BlockEntry) IsBlocked(now time.Time) bool {
	return b.BlockedUntil != nil && b.BlockedUntil.After(now)
}

// BlockEntryFor returns the carrier's entry on this request, or nil.
func (r *Request) BlockEntryFor(carrierRef int64) *BlockEntry {
	for i := range r.BlockedCarriers {
		if r.BlockedCarriers[i].CarrierRef == carrierRef {
			return &r.BlockedCarriers[i]
		}
	}
	return nil
}

// IsCarrierBlocked is true when an entry exists and its cool-down has not elapsed.
func (r *Request) IsCarrierBlocked(carrierRef int64, now time.Time) bool {
	entry := r.BlockEntryFor(carrierRef)
	return entry != nil && entry.IsBlocked(now)
}

// RecordDecline upserts the carrier's entry and increments its count. Once the
// count reaches threshold every further decline starts a fresh cool-down.
// The updated entry is returned.
func (r *Request) RecordDecline(carrierRef int64, threshold int, cooldown time.Duration, now time.Time) BlockEntry {
	entry := r.BlockEntryFor(carrierRef)
	if entry == nil {
		r.BlockedCarriers = append(r.BlockedCarriers, BlockEntry{CarrierRef: carrierRef})
		entry = &r.BlockedCarriers[len(r.BlockedCarriers)-1]
	}
	entry.DeclineCount++
	if entry.DeclineCount >= threshold {
		until := now.Add(cooldown)
		entry.BlockedUntil = &until
	}
	return *entry
}
