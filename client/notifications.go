package client

import (
	"sync"
	"time"

	"github.com/NFTcolumn/pixelponies/chain"
)

// Handler types for client events.
type (
	// OnStatusNtfn is called whenever the user-facing status line changes.
	OnStatusNtfn func(status string, ts time.Time)

	// OnApprovalReadyNtfn is called once the token allowance is confirmed
	// sufficient for the selected bet.
	OnApprovalReadyNtfn func(ts time.Time)

	// OnRaceResolvedNtfn is called after a wager settles with a decoded
	// outcome, before the reveal animation starts.
	OnRaceResolvedNtfn func(result *chain.RaceResult, won bool, ts time.Time)
)

// NotificationManager tracks handlers for client events. Handlers run
// synchronously on the calling goroutine.
type NotificationManager struct {
	sync.RWMutex

	statusHandlers   []OnStatusNtfn
	approvalHandlers []OnApprovalReadyNtfn
	resolvedHandlers []OnRaceResolvedNtfn
}

func NewNotificationManager() *NotificationManager {
	return &NotificationManager{}
}

func (nm *NotificationManager) RegisterStatusChanged(h OnStatusNtfn) {
	nm.Lock()
	nm.statusHandlers = append(nm.statusHandlers, h)
	nm.Unlock()
}

func (nm *NotificationManager) RegisterApprovalReady(h OnApprovalReadyNtfn) {
	nm.Lock()
	nm.approvalHandlers = append(nm.approvalHandlers, h)
	nm.Unlock()
}

func (nm *NotificationManager) RegisterRaceResolved(h OnRaceResolvedNtfn) {
	nm.Lock()
	nm.resolvedHandlers = append(nm.resolvedHandlers, h)
	nm.Unlock()
}

func (nm *NotificationManager) notifyStatusChanged(status string, ts time.Time) {
	nm.RLock()
	handlers := make([]OnStatusNtfn, len(nm.statusHandlers))
	copy(handlers, nm.statusHandlers)
	nm.RUnlock()
	for _, h := range handlers {
		h(status, ts)
	}
}

func (nm *NotificationManager) notifyApprovalReady(ts time.Time) {
	nm.RLock()
	handlers := make([]OnApprovalReadyNtfn, len(nm.approvalHandlers))
	copy(handlers, nm.approvalHandlers)
	nm.RUnlock()
	for _, h := range handlers {
		h(ts)
	}
}

func (nm *NotificationManager) notifyRaceResolved(result *chain.RaceResult, won bool, ts time.Time) {
	nm.RLock()
	handlers := make([]OnRaceResolvedNtfn, len(nm.resolvedHandlers))
	copy(handlers, nm.resolvedHandlers)
	nm.RUnlock()
	for _, h := range handlers {
		h(result, won, ts)
	}
}
