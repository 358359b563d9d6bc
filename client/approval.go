package client

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Approved reports whether the current bet amount has a confirmed
// allowance.
func (pc *PonyClient) Approved() bool {
	pc.RLock()
	defer pc.RUnlock()
	return pc.approved
}

// ApprovalPending reports whether an approval confirmed on-chain but the
// allowance read has not caught up yet.
func (pc *PonyClient) ApprovalPending() bool {
	pc.RLock()
	defer pc.RUnlock()
	return pc.approvalPending
}

// NeedsApproval reports whether the player must approve before racing.
func (pc *PonyClient) NeedsApproval() bool {
	pc.RLock()
	defer pc.RUnlock()
	return pc.bet != nil && !pc.approved
}

// RequestApproval submits an ERC-20 approve for the selected bet amount,
// waits for inclusion and polls the allowance until it reflects the new
// value. Blocks until resolution, run it on its own goroutine.
func (pc *PonyClient) RequestApproval(ctx context.Context) error {
	pc.Lock()
	if pc.horse < 0 || pc.bet == nil {
		pc.Unlock()
		err := gameErr(KindSubmissionFailed, "select a pony and bet amount first")
		pc.reportErr(err)
		return err
	}
	if pc.approved {
		pc.Unlock()
		return nil
	}
	if pc.racing {
		pc.Unlock()
		return gameErr(KindSubmissionFailed, "race in progress")
	}
	bet := new(big.Int).Set(pc.bet)
	pc.Unlock()

	pc.setStatus("Approving PONY tokens...")

	hash, err := pc.writer.Approve(ctx, bet)
	if err != nil {
		gerr := classifySubmitErr(err)
		pc.log.Errorf("approve submit: %v", err)
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}
	pc.log.Infof("approval submitted: %s", hash)

	if err := pc.waiter.WaitConfirmed(ctx, hash); err != nil {
		gerr := gameErr(KindReceiptUnavailable, "approval confirmation: %s", truncate(err.Error(), maxErrMsgLen))
		pc.setTransientStatus(gerr.Error())
		pc.reportErr(gerr)
		return gerr
	}

	return pc.handleApprovalConfirmed(ctx, hash, bet)
}

// handleApprovalConfirmed polls the allowance after an approval confirms.
// Each hash is handled at most once.
func (pc *PonyClient) handleApprovalConfirmed(ctx context.Context, hash common.Hash, bet *big.Int) error {
	pc.Lock()
	if _, done := pc.processed[hash]; done {
		pc.Unlock()
		pc.log.Debugf("approval %s already handled", hash)
		return nil
	}
	pc.processed[hash] = struct{}{}
	pc.Unlock()

	for i := 1; i <= allowanceCheckAttempts; i++ {
		pc.setStatus("Verifying approval... (%d/%d)", i, allowanceCheckAttempts)

		allowance, err := pc.reader.TokenAllowance(ctx, pc.Player)
		if err != nil {
			pc.log.Warnf("allowance read %d/%d: %v", i, allowanceCheckAttempts, err)
		} else if allowance.Cmp(bet) >= 0 {
			pc.Lock()
			pc.approved = true
			pc.approvalPending = false
			msg := pc.readyStatusLocked()
			pc.setStatusLocked(msg)
			pc.Unlock()
			pc.ntfns.notifyApprovalReady(time.Now())
			pc.announceStatus(msg)
			pc.log.Infof("allowance confirmed after %d checks", i)
			return nil
		}

		if err := sleep(ctx, pc.pollInterval); err != nil {
			return err
		}
	}

	// The approval is mined; the RPC node just has not surfaced the new
	// allowance. Leave the player a manual recheck path.
	pc.Lock()
	pc.approvalPending = true
	pc.Unlock()
	gerr := gameErr(KindAllowanceNotYetVisible,
		"Approval sent but not confirmed yet. Wait a moment and press CHECK.")
	pc.setStatus(gerr.Error())
	pc.reportErr(gerr)
	return gerr
}

// CheckApproval is the manual recheck path after an exhausted poll: one
// allowance read, flipping approved on success.
func (pc *PonyClient) CheckApproval(ctx context.Context) error {
	pc.RLock()
	bet := pc.bet
	pc.RUnlock()
	if bet == nil {
		return gameErr(KindSubmissionFailed, "no bet selected")
	}
	return pc.refreshAllowanceAgainst(ctx, bet, true)
}

// RefreshAllowance re-reads the allowance silently, used on startup to
// recover approvals from a prior session.
func (pc *PonyClient) RefreshAllowance(ctx context.Context) error {
	pc.RLock()
	bet := pc.bet
	pc.RUnlock()
	if bet == nil {
		return nil
	}
	return pc.refreshAllowanceAgainst(ctx, bet, false)
}

func (pc *PonyClient) refreshAllowanceAgainst(ctx context.Context, bet *big.Int, loud bool) error {
	allowance, err := pc.reader.TokenAllowance(ctx, pc.Player)
	if err != nil {
		if loud {
			pc.setTransientStatus("Could not check approval. Try again.")
		}
		return err
	}
	if allowance.Cmp(bet) < 0 {
		if loud {
			pc.setTransientStatus("Approval not confirmed yet. Wait a moment and try again.")
		}
		return nil
	}
	pc.Lock()
	pc.approved = true
	pc.approvalPending = false
	msg := pc.readyStatusLocked()
	pc.setStatusLocked(msg)
	pc.Unlock()
	pc.ntfns.notifyApprovalReady(time.Now())
	pc.announceStatus(msg)
	return nil
}
