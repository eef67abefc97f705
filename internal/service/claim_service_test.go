package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
)

func TestClaim_FifthClaimCompletes(t *testing.T) {
	f := newFixture(t)
	for i := int64(1); i <= 6; i++ {
		f.addCarrier(t, i, route, true)
	}
	req := f.createOperatorRequest(t)
	require.Len(t, req.NotificationHandles, 6)

	for i := int64(1); i <= 4; i++ {
		updated, err := f.claims.Claim(f.ctx, req.ID, i)
		require.NoError(t, err)
		assert.Equal(t, int(i), updated.ClaimCount)
		assert.Equal(t, models.RequestStatusOpen, updated.Status)
	}

	updated, err := f.claims.Claim(f.ctx, req.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.ClaimCount)
	assert.Equal(t, models.RequestStatusCompleted, updated.Status)
	assert.Empty(t, updated.NotificationHandles)
	assert.Equal(t, 0, f.messenger.Live(6), "remaining carriers lose their take button")

	last, ok := f.messenger.Last(5)
	require.True(t, ok)
	assert.Contains(t, last.Text, "+998901234567", "the claimer sees the contact directly")

	_, err = f.claims.Claim(f.ctx, req.ID, 6)
	assert.Equal(t, apperrors.KindConflict, kindOf(err))
	assert.Equal(t, 5, f.load(t, req.ID).ClaimCount)
}

func TestClaim_MarkersAreAuditEntries(t *testing.T) {
	f := newFixture(t)
	f.addCarrier(t, 1, route, true)
	req := f.createOperatorRequest(t)

	updated, err := f.claims.Claim(f.ctx, req.ID, 1)
	require.NoError(t, err)
	require.Len(t, updated.Offers, 1)

	marker := updated.Offers[0]
	assert.Equal(t, models.OfferKindClaim, marker.Kind)
	assert.Equal(t, models.OfferStatusAccepted, marker.Status)
	assert.Zero(t, marker.Price)
	assert.Nil(t, updated.AcceptedBid(), "claim markers are not bids")
}

func TestClaim_Guards(t *testing.T) {
	f := newFixture(t)
	f.addCarrier(t, 1, route, true)

	op := f.createOperatorRequest(t)
	_, err := f.claims.Claim(f.ctx, op.ID, 1)
	require.NoError(t, err)

	_, err = f.claims.Claim(f.ctx, op.ID, 1)
	assert.Equal(t, apperrors.KindConflict, kindOf(err), "one claim per carrier")
	assert.Equal(t, 1, f.load(t, op.ID).ClaimCount)

	regular := f.createRequest(t, requester)
	_, err = f.claims.Claim(f.ctx, regular.ID, 1)
	assert.Equal(t, apperrors.KindConflict, kindOf(err), "requester requests are negotiated")

	_, err = f.claims.Claim(f.ctx, op.ID, 404)
	assert.Equal(t, apperrors.KindConflict, kindOf(err))
}

func TestClaim_ConcurrentClaimsRespectCap(t *testing.T) {
	f := newFixture(t)
	const carriers = 12
	for i := int64(1); i <= carriers; i++ {
		f.addCarrier(t, i, route, true)
	}
	req := f.createOperatorRequest(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := int64(1); i <= carriers; i++ {
		wg.Add(1)
		go func(carrier int64) {
			defer wg.Done()
			_, err := f.claims.Claim(f.ctx, req.ID, carrier)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.Equal(t, apperrors.KindConflict, kindOf(err))
		}(i)
	}
	wg.Wait()

	stored := f.load(t, req.ID)
	assert.LessOrEqual(t, stored.ClaimCount, 5)
	assert.Equal(t, successes, stored.ClaimCount)
	assert.Len(t, stored.Offers, stored.ClaimCount)

	seen := map[int64]bool{}
	for _, o := range stored.Offers {
		assert.False(t, seen[o.CarrierRef], "carrier %d claimed twice", o.CarrierRef)
		seen[o.CarrierRef] = true
	}
}

func TestClaim_CustomCap(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.ClaimCap = 2 })
	f.addCarrier(t, 1, route, true)
	f.addCarrier(t, 2, route, true)
	req := f.createOperatorRequest(t)

	_, err := f.claims.Claim(f.ctx, req.ID, 1)
	require.NoError(t, err)
	updated, err := f.claims.Claim(f.ctx, req.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, updated.Status)
}
