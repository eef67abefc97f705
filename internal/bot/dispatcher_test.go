package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aditya/go-carpool/internal/control"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
)

func TestUpdateCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args string
		ok   bool
	}{
		{"/radar", "radar", "", true},
		{"/Radar@carpool_bot 2", "radar", "2", true},
		{"  /start  ", "start", "", true},
		{"/", "", "", false},
		{"hello", "", "", false},
		{"50 000", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := Update{Text: tt.text}.Command()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestStaleControls(t *testing.T) {
	h := newHarness(t)
	h.addCarrier(t, carrier)

	for _, data := range []string{"", "garbage", "bid", "bid:!!!", "accept:AAAAAAAAAAAAAAAAAAAAAA"} {
		answer := h.tapRaw(t, carrier, data)
		assert.Equal(t, notify.TextStale, answer.Text, "payload %q", data)
		assert.True(t, answer.Alert)
	}

	// well formed but pointing at nothing
	answer := h.tap(t, carrier, control.Bid("5f0c6f2e-8d6e-4a53-9a53-6a9c2f7d7f01"))
	assert.Equal(t, notify.TextStale, answer.Text)
	assert.Zero(t, h.diag.count(), "stale buttons are not failures")
}

func TestBidFlow(t *testing.T) {
	h := newHarness(t)
	h.addCarrier(t, carrier)
	req := h.createRequest(t)

	answer := h.tap(t, carrier, control.Bid(req.ID))
	assert.Empty(t, answer.Text)
	assert.Equal(t, notify.TextEnterPrice, h.lastText(t, carrier))

	h.send(carrier, "a lot")
	assert.Contains(t, h.lastText(t, carrier), "price", "a bad price is explained")
	sess, err := h.sessions.Get(h.ctx, carrier)
	require.NoError(t, err)
	require.NotNil(t, sess, "the carrier can retry")

	h.send(carrier, "50 000 so'm")
	assert.Contains(t, h.lastText(t, carrier), "50 000")
	assert.Contains(t, h.lastText(t, requester), "New offer")

	sess, err = h.sessions.Get(h.ctx, carrier)
	require.NoError(t, err)
	assert.Nil(t, sess)

	stored, err := h.requests.GetByID(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusNegotiating, stored.Status)

	offer := stored.PendingBid()
	require.NotNil(t, offer)
	answer = h.tap(t, requester, control.Accept(req.ID, offer.ID))
	assert.Equal(t, notify.TextAccepted, answer.Text)

	answer = h.tap(t, requester, control.Accept(req.ID, offer.ID))
	assert.True(t, answer.Alert, "a duplicate tap gets a visible notice")
	assert.Contains(t, answer.Text, "already")
}

func TestBidPriceTakesSession(t *testing.T) {
	h := newHarness(t)
	h.addCarrier(t, carrier)
	req := h.createRequest(t)

	h.tap(t, carrier, control.Bid(req.ID))
	h.send(carrier, "cheap")
	assert.Equal(t, 0, h.tracked.takes, "a bad price leaves the session alone")

	h.send(carrier, "120")
	assert.Equal(t, 1, h.tracked.takes)
	assert.Equal(t, 0, h.tracked.deletes, "the session is consumed in one step")
	assert.Contains(t, h.lastText(t, requester), "New offer")

	h.send(carrier, "130")
	assert.Equal(t, notify.TextHelp, h.lastText(t, carrier))
	stored, err := h.requests.GetByID(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Offers, 1)
}

func TestSessionDeleteFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.tracked.deleteErr = errors.New("redis down")
	require.NoError(t, h.sessions.Set(h.ctx, requester, &models.Session{Kind: "legacy"}))

	h.send(requester, "hello")
	assert.Equal(t, notify.TextHelp, h.lastText(t, requester))
	assert.Equal(t, 1, h.logs.FilterMessage("session delete failed").Len())
}

func TestRejectionsAlwaysReply(t *testing.T) {
	h := newHarness(t)
	h.addCarrier(t, carrier)
	h.addCarrier(t, 2)
	req := h.createRequest(t)

	h.tap(t, carrier, control.Bid(req.ID))
	h.send(carrier, "1000")

	answer := h.tap(t, 2, control.Bid(req.ID))
	assert.True(t, answer.Alert)
	assert.Contains(t, answer.Text, "negotiated", "a second carrier hears the request is busy")

	answer = h.tap(t, requester, control.Bid(req.ID))
	assert.Equal(t, notify.TextCarrierOnly, answer.Text)

	answer = h.tap(t, 2, control.Cancel(req.ID))
	assert.Equal(t, notify.TextStale, answer.Text, "strangers cannot cancel")

	answer = h.tap(t, carrier, control.Claim(req.ID))
	assert.True(t, answer.Alert)
	assert.NotEmpty(t, answer.Text)

	h.send(requester, "/radar")
	assert.Equal(t, notify.TextCarrierOnly, h.lastText(t, requester))

	h.send(requester, "hello")
	assert.Equal(t, notify.TextHelp, h.lastText(t, requester))
}

func TestCancelFlow(t *testing.T) {
	h := newHarness(t)
	req := h.createRequest(t)

	h.send(requester, "/myrequest")
	m, ok := h.messenger.Last(requester)
	require.True(t, ok)
	require.NotEmpty(t, m.Keyboard)
	assert.Equal(t, control.KindCancel, m.Keyboard[0][0].Control.Kind)

	h.tap(t, requester, control.Cancel(req.ID))
	m, _ = h.messenger.Last(requester)
	require.Len(t, m.Keyboard, 1)
	assert.Equal(t, control.KindCancelYes, m.Keyboard[0][0].Control.Kind)

	h.tap(t, requester, control.CancelNo(req.ID))
	assert.Equal(t, notify.TextNotCancelled, h.lastText(t, requester))

	h.tap(t, requester, control.CancelYes(req.ID))
	assert.Equal(t, notify.RequestCancelled(), h.lastText(t, requester))

	h.send(requester, "/myrequest")
	assert.Equal(t, notify.TextNoActive, h.lastText(t, requester))
}

func TestRideWizard(t *testing.T) {
	h := newHarness(t)
	h.addCarrier(t, carrier)

	h.send(requester, "/ride")
	m, ok := h.messenger.Last(requester)
	require.True(t, ok)
	assert.Equal(t, notify.TextPickRoute, m.Text)
	require.Len(t, m.Keyboard, 2)

	h.send(requester, "Tashkent")
	assert.Equal(t, notify.TextPickRoute, h.lastText(t, requester), "the route comes from the buttons")

	answer := h.tap(t, requester, m.Keyboard[0][0].Control)
	assert.Empty(t, answer.Text)
	assert.Equal(t, notify.TextAskTime, h.lastText(t, requester))

	answer = h.tap(t, requester, m.Keyboard[0][0].Control)
	assert.Equal(t, notify.TextStale, answer.Text, "the route step is over")

	h.send(requester, "tomorrow 7:00")
	assert.Equal(t, notify.TextAskSeats, h.lastText(t, requester))

	h.send(requester, "twelve")
	assert.Equal(t, notify.TextAskSeats, h.lastText(t, requester))

	h.send(requester, "3")
	assert.Equal(t, notify.TextAskDetails, h.lastText(t, requester))

	h.send(requester, "near the metro")
	assert.Contains(t, h.lastText(t, requester), "is live")

	req, err := h.requests.GetActiveByRequester(h.ctx, requester)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, 3, req.Seats)
	assert.Equal(t, "tash_nam", req.RouteKey)
	assert.Equal(t, "near the metro", req.LocationDetail)
	assert.Len(t, h.messenger.SentTo(carrier), 1, "the carrier got the card")

	h.send(requester, "/parcel")
	assert.Contains(t, h.lastText(t, requester), "active request")
}

func TestRideDetailsIgnorePhoto(t *testing.T) {
	h := newHarness(t)

	h.send(requester, "/ride")
	h.tap(t, requester, control.WizardRoute("tash_nam"))
	h.send(requester, "tomorrow 7:00")
	h.send(requester, "2")
	require.Equal(t, notify.TextAskDetails, h.lastText(t, requester))

	h.d.Handle(h.ctx, Update{UserID: requester, ChatID: requester, PhotoRef: "photo-1"})
	assert.Equal(t, notify.TextAskDetails, h.lastText(t, requester), "a photo is not a ride detail")
	req, err := h.requests.GetActiveByRequester(h.ctx, requester)
	require.NoError(t, err)
	assert.Nil(t, req)

	h.d.Handle(h.ctx, Update{UserID: requester, ChatID: requester, PhotoRef: "photo-2", Text: "by the bazaar"})
	req, err = h.requests.GetActiveByRequester(h.ctx, requester)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "by the bazaar", req.LocationDetail)
	assert.Nil(t, req.PhotoRef)
}

func TestParcelWizardWithVoice(t *testing.T) {
	h := newHarness(t)

	h.send(requester, "/parcel")
	h.tap(t, requester, control.WizardRoute("nam_tash"))
	h.send(requester, "today")
	assert.Equal(t, notify.TextAskPackage, h.lastText(t, requester))
	h.send(requester, "documents")
	h.d.Handle(h.ctx, Update{UserID: requester, ChatID: requester, VoiceRef: "voice-9"})

	req, err := h.requests.GetActiveByRequester(h.ctx, requester)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.RequestTypeParcel, req.Type)
	assert.Equal(t, "documents", req.PackageKind)
	require.NotNil(t, req.VoiceRef)
	assert.Equal(t, "voice-9", *req.VoiceRef)
}

func TestCarrierAvailability(t *testing.T) {
	h := newHarness(t)
	h.addCarrier(t, carrier)

	h.send(carrier, "/online")
	m, ok := h.messenger.Last(carrier)
	require.True(t, ok)
	require.NotEmpty(t, m.Keyboard)

	h.tap(t, carrier, control.Route("nam_tash"))
	assert.Contains(t, h.lastText(t, carrier), "Namangan → Tashkent")

	p, err := h.profiles.GetByID(h.ctx, carrier)
	require.NoError(t, err)
	assert.True(t, p.Online)
	assert.Equal(t, "nam_tash", p.Route)

	h.send(carrier, "/offline")
	assert.Equal(t, notify.TextWentOffline, h.lastText(t, carrier))

	answer := h.tap(t, carrier, control.Route("moon"))
	assert.True(t, answer.Alert)
}

func TestRadar(t *testing.T) {
	h := newHarness(t)
	h.addCarrier(t, carrier)
	for i := int64(0); i < 12; i++ {
		_, err := h.service.CreateRequest(h.ctx, models.CreateRequestInput{
			RequesterRef: 200 + i,
			Origin:       "Tashkent",
			Destination:  "Namangan",
			DesiredTime:  "today",
			Type:         models.RequestTypeTransport,
			Seats:        1,
			CreatedBy:    models.CreatedByRequester,
		})
		require.NoError(t, err)
	}

	h.send(carrier, "/radar")
	m, ok := h.messenger.Last(carrier)
	require.True(t, ok)
	assert.Contains(t, m.Text, "(12)")
	require.Len(t, m.Keyboard, 11, "ten requests and the page row")

	h.d.Handle(h.ctx, Update{UserID: carrier, ChatID: carrier, InteractionID: "page", Data: "radar:1", MessageRef: m.MessageRef})
	edits := h.messenger.Edits()
	require.Len(t, edits, 1)
	assert.True(t, strings.Contains(edits[0].Text, "11."), "the second page continues the numbering")
}

func TestThrottle(t *testing.T) {
	h := newHarness(t)
	h.limiter.deny = true

	h.send(requester, "/start")
	assert.Equal(t, notify.TextSlowDown, h.lastText(t, requester))

	answer := h.tapRaw(t, requester, "radar:0")
	assert.Equal(t, notify.TextSlowDown, answer.Text)
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.limiter.panic = true

	answer := h.tapRaw(t, requester, "radar:0")
	assert.Equal(t, notify.TextGenericError, answer.Text)

	h.send(requester, "/start")
	assert.Equal(t, notify.TextGenericError, h.lastText(t, requester))
	assert.Equal(t, 2, h.diag.count(), "operators hear about every panic")
}

func TestRunDrainsUpdates(t *testing.T) {
	h := newHarness(t)

	updates := make(chan Update)
	done := make(chan error, 1)
	go func() { done <- h.d.Run(context.Background(), updates) }()

	for i := int64(0); i < 20; i++ {
		updates <- Update{UserID: 500 + i, ChatID: 500 + i, Text: "/help"}
	}
	close(updates)
	require.NoError(t, <-done)

	for i := int64(0); i < 20; i++ {
		assert.Len(t, h.messenger.SentTo(500+i), 1)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.d.Run(ctx, make(chan Update))
	assert.ErrorIs(t, err, context.Canceled)
}
