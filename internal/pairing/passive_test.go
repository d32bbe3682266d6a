package pairing

import (
	"errors"
	"testing"

	"opendebate/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// req builds a passive request in arrival order; the slice index stands in
// for creation time since the batch input is already sorted.
func req(id uint, userStance, desiredStance bool) passiveRequest {
	return passiveRequest{
		PairingRequest: models.PairingRequest{
			Model:         gorm.Model{ID: id},
			UserID:        id * 100,
			DesiredStance: desiredStance,
		},
		UserStance: userStance,
	}
}

func collectPairs(t *testing.T) (func(a, b *passiveRequest) error, *[][2]uint) {
	t.Helper()
	var pairs [][2]uint
	return func(a, b *passiveRequest) error {
		pairs = append(pairs, [2]uint{a.ID, b.ID})
		return nil
	}, &pairs
}

func TestPairPassiveBatchPairsOpposingStances(t *testing.T) {
	pair, pairs := collectPairs(t)

	paired := pairPassiveBatch([]passiveRequest{
		req(1, true, false),
		req(2, false, true),
	}, pair)

	require.Equal(t, 1, paired)
	require.Len(t, *pairs, 1)
	assert.Equal(t, [2]uint{2, 1}, (*pairs)[0])
}

func TestPairPassiveBatchSkipsSameSide(t *testing.T) {
	pair, pairs := collectPairs(t)

	// Both users are "for" and both want a "for" opponent, but each is not
	// what the other wants relative to themselves.
	paired := pairPassiveBatch([]passiveRequest{
		req(1, true, false),
		req(2, true, false),
	}, pair)

	assert.Equal(t, 0, paired)
	assert.Empty(t, *pairs)
}

func TestPairPassiveBatchPrefersOldestCompatible(t *testing.T) {
	pair, pairs := collectPairs(t)

	paired := pairPassiveBatch([]passiveRequest{
		req(1, true, false),
		req(2, true, false),
		req(3, false, true),
	}, pair)

	require.Equal(t, 1, paired)
	assert.Equal(t, [2]uint{3, 1}, (*pairs)[0], "the later arrival pairs with the oldest waiter")
}

func TestPairPassiveBatchInterleavedArrivals(t *testing.T) {
	pair, pairs := collectPairs(t)

	// Two "for" users followed by two "against" users: first-come,
	// first-served pairs the third with the first and the fourth with
	// the second.
	paired := pairPassiveBatch([]passiveRequest{
		req(1, true, false),
		req(2, true, false),
		req(3, false, true),
		req(4, false, true),
	}, pair)

	require.Equal(t, 2, paired)
	assert.Equal(t, [2]uint{3, 1}, (*pairs)[0])
	assert.Equal(t, [2]uint{4, 2}, (*pairs)[1])
}

func TestPairPassiveBatchOddLeftoverStaysQueued(t *testing.T) {
	pair, _ := collectPairs(t)

	paired := pairPassiveBatch([]passiveRequest{
		req(1, true, false),
		req(2, false, true),
		req(3, false, true),
	}, pair)

	assert.Equal(t, 1, paired, "the third request has no counterpart left in this batch")
}

func TestPairPassiveBatchRequeuesCounterpartOnFailure(t *testing.T) {
	var pairs [][2]uint
	failOnce := true
	pair := func(a, b *passiveRequest) error {
		if failOnce {
			failOnce = false
			return errors.New("serialization failure")
		}
		pairs = append(pairs, [2]uint{a.ID, b.ID})
		return nil
	}

	paired := pairPassiveBatch([]passiveRequest{
		req(1, true, false),
		req(2, false, true),
		req(3, false, true),
	}, pair)

	// The failed pairing of (2, 1) puts request 1 back at the head of its
	// queue, so request 3 pairs with it instead.
	require.Equal(t, 1, paired)
	require.Len(t, pairs, 1)
	assert.Equal(t, [2]uint{3, 1}, pairs[0])
}

func TestPairPassiveBatchEmptyInput(t *testing.T) {
	pair, _ := collectPairs(t)
	assert.Equal(t, 0, pairPassiveBatch(nil, pair))
}
