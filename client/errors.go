package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NFTcolumn/pixelponies/chain"
)

// FailureKind classifies the ways an approval or race attempt can fail.
// Every kind except AllowanceNotYetVisible is terminal for the attempt;
// none of them clears the player's selection.
type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindWalletRejected
	KindSubmissionFailed
	KindInsufficientFunds
	KindReceiptUnavailable
	KindTransactionReverted
	KindOutcomeNotFound
	KindAllowanceNotYetVisible
)

func (k FailureKind) String() string {
	switch k {
	case KindWalletRejected:
		return "wallet rejected"
	case KindSubmissionFailed:
		return "submission failed"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindReceiptUnavailable:
		return "receipt unavailable"
	case KindTransactionReverted:
		return "transaction reverted"
	case KindOutcomeNotFound:
		return "outcome not found"
	case KindAllowanceNotYetVisible:
		return "allowance not yet visible"
	default:
		return "unknown failure"
	}
}

// maxErrMsgLen bounds how much raw diagnostic text reaches the status line.
const maxErrMsgLen = 80

// GameError is a classified failure with the user-facing message already
// composed.
type GameError struct {
	Kind FailureKind
	msg  string
}

func (e *GameError) Error() string { return e.msg }

// Recoverable reports whether the player can resolve this without starting
// a new attempt.
func (e *GameError) Recoverable() bool { return e.Kind == KindAllowanceNotYetVisible }

func gameErr(kind FailureKind, format string, args ...interface{}) *GameError {
	return &GameError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// classifySubmitErr maps a failed write call to its user-facing kind.
func classifySubmitErr(err error) *GameError {
	if errors.Is(err, chain.ErrSignRejected) {
		return gameErr(KindWalletRejected, "Transaction rejected")
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "user rejected"), strings.Contains(lower, "denied"):
		return gameErr(KindWalletRejected, "Transaction rejected")
	case strings.Contains(lower, "insufficient"):
		return gameErr(KindInsufficientFunds, "Insufficient ETH for entry fee plus gas")
	default:
		return gameErr(KindSubmissionFailed, "Error: %s", truncate(msg, maxErrMsgLen))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
