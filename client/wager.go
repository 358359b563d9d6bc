package client

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Race submits the wager transaction and settles it: wait for inclusion,
// fetch the receipt, decode the outcome, play the reveal. Blocks until the
// attempt resolves, run it on its own goroutine.
func (pc *PonyClient) Race(ctx context.Context) error {
	pc.Lock()
	if pc.horse < 0 || pc.bet == nil {
		pc.Unlock()
		err := gameErr(KindSubmissionFailed, "select a pony and bet amount first")
		pc.reportErr(err)
		return err
	}
	if !pc.approved {
		pc.Unlock()
		err := gameErr(KindSubmissionFailed, "approve your PONY bet first")
		pc.reportErr(err)
		return err
	}
	if pc.racing {
		pc.Unlock()
		return gameErr(KindSubmissionFailed, "race already in progress")
	}
	pc.racing = true
	pc.stage = StageSubmitting
	horse := pc.horse
	bet := new(big.Int).Set(pc.bet)
	pc.Unlock()

	err := pc.runRace(ctx, horse, bet)

	pc.Lock()
	pc.racing = false
	if err != nil {
		pc.stage = StageFailed
	}
	pc.Unlock()
	pc.notifyUpdate()
	return err
}

func (pc *PonyClient) runRace(ctx context.Context, horse int, bet *big.Int) error {
	fee, err := pc.reader.EntryFee(ctx)
	if err != nil {
		gerr := gameErr(KindSubmissionFailed, "could not read entry fee: %s", truncate(err.Error(), maxErrMsgLen))
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}

	// Funds check before any write: fee plus a fixed gas margin.
	balance, err := pc.reader.NativeBalance(ctx, pc.Player)
	if err != nil {
		gerr := gameErr(KindSubmissionFailed, "could not read balance: %s", truncate(err.Error(), maxErrMsgLen))
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}
	needed := new(big.Int).Add(fee, pc.gasBuffer)
	if balance.Cmp(needed) < 0 {
		gerr := gameErr(KindInsufficientFunds, "Need %s ETH total (%s ETH available)",
			FormatEth(needed), FormatEth(balance))
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}

	pc.setStatus("Sending race transaction...")

	hash, err := pc.writer.PlaceBetAndRace(ctx, horse, bet, fee)
	if err != nil {
		gerr := classifySubmitErr(err)
		pc.log.Errorf("race submit: %v", err)
		pc.Lock()
		pc.showTrack = false
		pc.Unlock()
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}
	pc.log.Infof("race submitted: horse=%d bet=%s fee=%s hash=%s",
		horse, FormatPony(bet), FormatEth(fee), hash)

	pc.Lock()
	pc.stage = StageAwaitingConfirmation
	pc.Unlock()

	if err := pc.waiter.WaitConfirmed(ctx, hash); err != nil {
		gerr := gameErr(KindReceiptUnavailable, "race confirmation: %s", truncate(err.Error(), maxErrMsgLen))
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}

	return pc.settle(ctx, hash, horse)
}

// settle resolves one confirmed wager hash: bounded receipt polling, log
// decode and the reveal animation. Each hash settles at most once;
// duplicate confirmation signals are no-ops.
func (pc *PonyClient) settle(ctx context.Context, hash common.Hash, horse int) error {
	pc.Lock()
	if _, done := pc.processed[hash]; done {
		pc.Unlock()
		pc.log.Debugf("race %s already settled", hash)
		return nil
	}
	pc.processed[hash] = struct{}{}
	pc.showTrack = true
	pc.stage = StageFetchingReceipt
	pc.Unlock()
	pc.notifyUpdate()

	var receipt *types.Receipt
	for i := 1; i <= receiptFetchAttempts; i++ {
		pc.setStatus("Confirming on blockchain... (%d/%d)", i, receiptFetchAttempts)

		r, err := pc.waiter.Receipt(ctx, hash)
		if err == nil && r != nil {
			receipt = r
			break
		}
		if err != nil {
			pc.log.Debugf("receipt fetch %d/%d: %v", i, receiptFetchAttempts, err)
		}
		if err := sleep(ctx, pc.pollInterval); err != nil {
			return err
		}
	}
	if receipt == nil {
		gerr := gameErr(KindReceiptUnavailable,
			"Race sent but result not confirmed yet. Check %s on a block explorer.", hash)
		pc.setStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		gerr := gameErr(KindTransactionReverted, "Race transaction reverted. Your bet was not taken.")
		pc.Lock()
		pc.showTrack = false
		pc.Unlock()
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}

	pc.Lock()
	pc.stage = StageDecodingOutcome
	pc.Unlock()

	result, err := pc.decoder.DecodeRaceResult(receipt)
	if err != nil {
		// The hash stays marked processed, the chain state is final even
		// when we cannot read the outcome.
		gerr := gameErr(KindOutcomeNotFound,
			"Race ran but the result could not be read. Check %s on a block explorer.", hash)
		pc.setStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}

	won := result.PlayerWon(horse)
	pc.Lock()
	pc.lastOutcome = result
	pc.lastPlayerWon = won
	pc.stage = StageAnimating
	pc.Unlock()
	pc.ntfns.notifyRaceResolved(result, won, time.Now())
	pc.log.Infof("race resolved: winners=%v payout=%s won=%v", result.Winners, FormatPony(result.Payout), won)

	pc.setStatus("And they're off!")
	if pc.anim != nil {
		if err := pc.anim.Play(ctx, result.Winners); err != nil {
			pc.log.Warnf("race animation: %v", err)
		}
	}

	pc.Lock()
	var msg string
	if won {
		pc.stage = StageResolvedWin
		msg = "You won!"
	} else {
		pc.stage = StageResolvedLose
		msg = "Better luck next time!"
	}
	pc.setStatusLocked(msg)
	// A settled wager consumed the approved allowance; require a fresh
	// approval before the next race.
	pc.approved = false
	pc.approvalPending = false
	pc.Unlock()
	pc.announceStatus(msg)

	go pc.refreshCaches(context.WithoutCancel(ctx))
	return nil
}
