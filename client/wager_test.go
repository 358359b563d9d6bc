package client

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NFTcolumn/pixelponies/chain"
)

// readyToRace selects a pony and bet and marks the allowance confirmed.
func readyToRace(h *testHarness, horse int) {
	h.pc.SelectHorse(horse)
	h.pc.SelectBet(ponies(1_000_000_000))
	h.pc.Lock()
	h.pc.approved = true
	h.pc.Unlock()
}

func kindOf(t *testing.T, err error) FailureKind {
	t.Helper()
	var gerr *GameError
	require.True(t, errors.As(err, &gerr), "want GameError, got %v", err)
	return gerr.Kind
}

func TestRaceHappyPathWin(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 3)
	h.waiter.receipt = successReceipt()
	h.decoder.result = &chain.RaceResult{
		Winners: [3]int{3, 7, 11},
		Payout:  ponies(1_500_000_000),
		Won:     true,
	}

	var resolved int
	h.pc.ntfns.RegisterRaceResolved(func(result *chain.RaceResult, won bool, _ time.Time) {
		resolved++
		assert.True(t, won)
		assert.Equal(t, [3]int{3, 7, 11}, result.Winners)
	})

	require.NoError(t, h.pc.Race(context.Background()))

	assert.Equal(t, 1, h.writer.raceCalls)
	assert.Equal(t, 3, h.writer.lastHorse)
	assert.Zero(t, h.reader.fee.Cmp(h.writer.lastFee))
	assert.Equal(t, 1, h.anim.plays)
	assert.Equal(t, [3]int{3, 7, 11}, h.anim.winners)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, "You won!", h.pc.Status())
	assert.Equal(t, StageResolvedWin, h.pc.Stage())
	assert.False(t, h.pc.Racing())
	assert.True(t, h.pc.TrackVisible())

	// A settled race consumed the allowance.
	assert.False(t, h.pc.Approved())

	outcome, won := h.pc.LastOutcome()
	require.NotNil(t, outcome)
	assert.True(t, won)
}

func TestRaceHappyPathLoss(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 0)
	h.waiter.receipt = successReceipt()
	h.decoder.result = &chain.RaceResult{
		Winners: [3]int{3, 7, 11},
		Payout:  new(big.Int),
		Won:     false,
	}

	require.NoError(t, h.pc.Race(context.Background()))
	assert.Equal(t, "Better luck next time!", h.pc.Status())
	assert.Equal(t, StageResolvedLose, h.pc.Stage())
}

func TestRaceRequiresApproval(t *testing.T) {
	h := newTestClient(t)
	h.pc.SelectHorse(2)
	h.pc.SelectBet(ponies(1_000_000_000))

	err := h.pc.Race(context.Background())
	require.Error(t, err)
	assert.Zero(t, h.writer.raceCalls)
}

func TestRaceInsufficientFundsBeforeWrite(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 2)
	h.reader.nativeBal = big.NewInt(1) // cannot cover fee plus gas margin

	err := h.pc.Race(context.Background())
	assert.Equal(t, KindInsufficientFunds, kindOf(t, err))
	assert.Zero(t, h.writer.raceCalls)
	assert.Contains(t, err.Error(), "Need")

	// The selection survives the failure.
	horse, bet := h.pc.Selection()
	assert.Equal(t, 2, horse)
	assert.NotNil(t, bet)
}

func TestTransientErrorAutoClears(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 2)
	h.reader.nativeBal = big.NewInt(1)

	var mu sync.Mutex
	var seen []string
	h.pc.ntfns.RegisterStatusChanged(func(status string, _ time.Time) {
		mu.Lock()
		seen = append(seen, status)
		mu.Unlock()
		// Handlers may read the client back.
		_ = h.pc.Status()
	})

	err := h.pc.Race(context.Background())
	require.Equal(t, KindInsufficientFunds, kindOf(t, err))
	require.Contains(t, h.pc.Status(), "Need")

	// The error text reverts to the ready message after the clear delay.
	require.Eventually(t, func() bool {
		return strings.Contains(h.pc.Status(), "Ready to race!")
	}, time.Second, 5*time.Millisecond)

	// Status handlers observe the revert too, not just the UI channel.
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Contains(t, seen[len(seen)-1], "Ready to race!")
}

func TestRaceSubmitRejected(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 2)
	h.writer.raceErr = chain.ErrSignRejected

	err := h.pc.Race(context.Background())
	assert.Equal(t, KindWalletRejected, kindOf(t, err))
	assert.False(t, h.pc.TrackVisible())
	assert.False(t, h.pc.Racing())
	assert.Equal(t, StageFailed, h.pc.Stage())
}

func TestRaceRevertedReceipt(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 2)
	h.waiter.receipt = &types.Receipt{Status: types.ReceiptStatusFailed}

	err := h.pc.Race(context.Background())
	assert.Equal(t, KindTransactionReverted, kindOf(t, err))
	assert.False(t, h.pc.TrackVisible())
	assert.False(t, h.pc.Racing())
	assert.Zero(t, h.anim.plays)

	horse, bet := h.pc.Selection()
	assert.Equal(t, 2, horse)
	assert.NotNil(t, bet)
}

func TestRaceReceiptUnavailable(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 2)
	// Receipt never shows up.

	err := h.pc.Race(context.Background())
	assert.Equal(t, KindReceiptUnavailable, kindOf(t, err))
	assert.Equal(t, receiptFetchAttempts, h.waiter.fetches)
	assert.Contains(t, err.Error(), "block explorer")
}

func TestRaceDelayedReceipt(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 7)
	h.waiter.receipt = successReceipt()
	h.waiter.receiptAfter = 5
	h.decoder.result = &chain.RaceResult{Winners: [3]int{7, 1, 2}, Payout: ponies(10), Won: true}

	require.NoError(t, h.pc.Race(context.Background()))
	assert.Equal(t, 6, h.waiter.fetches)
	assert.Equal(t, "You won!", h.pc.Status())
}

func TestRaceOutcomeNotFound(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 2)
	h.waiter.receipt = successReceipt()
	h.decoder.err = chain.ErrNoRaceEvent

	err := h.pc.Race(context.Background())
	assert.Equal(t, KindOutcomeNotFound, kindOf(t, err))
	assert.Zero(t, h.anim.plays)

	// The hash stays settled; a duplicate signal does not retry the decode.
	decodes := h.decoder.calls
	require.NoError(t, h.pc.settle(context.Background(), h.writer.raceHash, 2))
	assert.Equal(t, decodes, h.decoder.calls)
}

func TestSettleIdempotent(t *testing.T) {
	h := newTestClient(t)
	readyToRace(h, 3)
	h.waiter.receipt = successReceipt()
	h.decoder.result = &chain.RaceResult{Winners: [3]int{3, 7, 11}, Payout: ponies(10), Won: true}

	require.NoError(t, h.pc.Race(context.Background()))
	require.Equal(t, 1, h.anim.plays)

	require.NoError(t, h.pc.settle(context.Background(), h.writer.raceHash, 3))
	assert.Equal(t, 1, h.anim.plays)
}
