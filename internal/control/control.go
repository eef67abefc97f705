// Package control encodes the payloads carried by inline chat buttons.
//
// A payload is "<tag>" followed by colon-separated fields. Request and offer
// ids are UUIDs packed into 22 base64url characters so the longest payload
// stays well under the 64 byte callback limit of the chat platform.
package control

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxPayload is the chat platform's callback data limit in bytes.
const MaxPayload = 64

var (
	ErrMalformed = errors.New("control: malformed payload")
	ErrUnknown   = errors.New("control: unknown tag")
)

type Kind string

const (
	KindBid         Kind = "bid"
	KindClaim       Kind = "claim"
	KindAccept      Kind = "accept"
	KindDecline     Kind = "decline"
	KindCancel      Kind = "cancel"
	KindCancelYes   Kind = "cancel_yes"
	KindCancelNo    Kind = "cancel_no"
	KindComplete    Kind = "complete"
	KindRoute       Kind = "route"
	KindWizardRoute Kind = "wroute"
	KindRadarPage   Kind = "radar"
)

type field int

const (
	fieldRequest field = iota
	fieldOffer
	fieldRoute
	fieldPage
)

// layout lists the fields each kind carries, in wire order.
var layout = map[Kind][]field{
	KindBid:         {fieldRequest},
	KindClaim:       {fieldRequest},
	KindAccept:      {fieldRequest, fieldOffer},
	KindDecline:     {fieldRequest, fieldOffer},
	KindCancel:      {fieldRequest},
	KindCancelYes:   {fieldRequest},
	KindCancelNo:    {fieldRequest},
	KindComplete:    {fieldRequest},
	KindRoute:       {fieldRoute},
	KindWizardRoute: {fieldRoute},
	KindRadarPage:   {fieldPage},
}

// Control is a decoded button payload. Only the fields of its kind are set.
type Control struct {
	Kind      Kind
	RequestID string
	OfferID   string
	Route     string
	Page      int
}

func Bid(requestID string) Control { return Control{Kind: KindBid, RequestID: requestID} }
func Claim(requestID string) Control { return Control{Kind: KindClaim, RequestID: requestID} }
func Cancel(requestID string) Control { return Control{Kind: KindCancel, RequestID: requestID} }
func CancelYes(requestID string) Control { return Control{Kind: KindCancelYes, RequestID: requestID} }
func CancelNo(requestID string) Control { return Control{Kind: KindCancelNo, RequestID: requestID} }
func Complete(requestID string) Control { return Control{Kind: KindComplete, RequestID: requestID} }
func Route(key string) Control { return Control{Kind: KindRoute, Route: key} }
func WizardRoute(key string) Control { return Control{Kind: KindWizardRoute, Route: key} }
func RadarPage(page int) Control { return Control{Kind: KindRadarPage, Page: page} }

func Accept(requestID, offerID string) Control {
	return Control{Kind: KindAccept, RequestID: requestID, OfferID: offerID}
}

func Decline(requestID, offerID string) Control {
	return Control{Kind: KindDecline, RequestID: requestID, OfferID: offerID}
}

// Encode renders c as a button payload.
func Encode(c Control) (string, error) {
	fields, ok := layout[c.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknown, c.Kind)
	}

	parts := []string{string(c.Kind)}
	for _, f := range fields {
		switch f {
		case fieldRequest:
			s, err := packID(c.RequestID)
			if err != nil {
				return "", fmt.Errorf("request id: %w", err)
			}
			parts = append(parts, s)
		case fieldOffer:
			s, err := packID(c.OfferID)
			if err != nil {
				return "", fmt.Errorf("offer id: %w", err)
			}
			parts = append(parts, s)
		case fieldRoute:
			if c.Route == "" || strings.Contains(c.Route, ":") {
				return "", fmt.Errorf("%w: route %q", ErrMalformed, c.Route)
			}
			parts = append(parts, c.Route)
		case fieldPage:
			if c.Page < 0 {
				return "", fmt.Errorf("%w: page %d", ErrMalformed, c.Page)
			}
			parts = append(parts, strconv.Itoa(c.Page))
		}
	}

	out := strings.Join(parts, ":")
	if len(out) > MaxPayload {
		return "", fmt.Errorf("%w: %d bytes", ErrMalformed, len(out))
	}
	return out, nil
}

// Decode parses a payload. Anything it cannot fully account for is an error;
// callers treat every error as a stale button.
func Decode(data string) (Control, error) {
	if data == "" || len(data) > MaxPayload {
		return Control{}, ErrMalformed
	}
	parts := strings.Split(data, ":")
	kind := Kind(parts[0])
	fields, ok := layout[kind]
	if !ok {
		return Control{}, fmt.Errorf("%w: %q", ErrUnknown, parts[0])
	}
	if len(parts)-1 != len(fields) {
		return Control{}, fmt.Errorf("%w: %s wants %d fields, got %d", ErrMalformed, kind, len(fields), len(parts)-1)
	}

	c := Control{Kind: kind}
	for i, f := range fields {
		raw := parts[i+1]
		var err error
		switch f {
		case fieldRequest:
			c.RequestID, err = unpackID(raw)
		case fieldOffer:
			c.OfferID, err = unpackID(raw)
		case fieldRoute:
			if raw == "" {
				err = ErrMalformed
			}
			c.Route = raw
		case fieldPage:
			c.Page, err = strconv.Atoi(raw)
			if err == nil && c.Page < 0 {
				err = ErrMalformed
			}
		}
		if err != nil {
			return Control{}, fmt.Errorf("%w: field %d of %s", ErrMalformed, i+1, kind)
		}
	}
	return c, nil
}

func packID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return base64.RawURLEncoding.EncodeToString(u[:]), nil
}

func unpackID(s string) (string, error) {
	if len(s) != 22 {
		return "", ErrMalformed
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
