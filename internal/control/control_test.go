package control

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := uuid.New().String()
	offer := uuid.New().String()

	tests := []struct {
		name string
		c    Control
	}{
		{"bid", Bid(req)},
		{"claim", Claim(req)},
		{"accept", Accept(req, offer)},
		{"decline", Decline(req, offer)},
		{"cancel", Cancel(req)},
		{"cancel confirm", CancelYes(req)},
		{"cancel abort", CancelNo(req)},
		{"complete", Complete(req)},
		{"route", Route("tash_nam")},
		{"wizard route", WizardRoute("nam_tash")},
		{"radar page", RadarPage(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.c)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(data), MaxPayload)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.c, got)
		})
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		c    Control
	}{
		{"unknown kind", Control{Kind: "launch"}},
		{"non uuid request", Bid("42")},
		{"missing offer", Accept(uuid.New().String(), "")},
		{"route with separator", Route("a:b")},
		{"negative page", RadarPage(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.c)
			assert.Error(t, err)
		})
	}
}

func TestDecodeStalePayloads(t *testing.T) {
	valid, err := Encode(Accept(uuid.New().String(), uuid.New().String()))
	require.NoError(t, err)

	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "", ErrMalformed},
		{"unknown tag", "launch:abc", ErrUnknown},
		{"legacy underscore id", "accept_64f0c1_64f0c2", ErrUnknown},
		{"missing field", "accept:" + valid[len("accept:"):len("accept:")+22], ErrMalformed},
		{"extra field", valid + ":x", ErrMalformed},
		{"short id", "bid:abc", ErrMalformed},
		{"bad base64", "bid:!!!!!!!!!!!!!!!!!!!!!!", ErrMalformed},
		{"bad page", "radar:two", ErrMalformed},
		{"empty route", "route:", ErrMalformed},
		{"too long", string(make([]byte, MaxPayload+1)), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestIDsArePacked(t *testing.T) {
	data, err := Encode(Decline(uuid.New().String(), uuid.New().String()))
	require.NoError(t, err)
	// tag + two 22 char ids + separators
	assert.Len(t, data, len("decline")+1+22+1+22)
}
