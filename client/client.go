package client

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/NFTcolumn/pixelponies/chain"
	"github.com/NFTcolumn/pixelponies/selectionstore"
)

// UpdatedMsg tells the UI that client state changed and the view should
// repaint.
type UpdatedMsg struct{}

// RaceStage is the wager lifecycle position. Failed stages are terminal per
// attempt; the selection survives so the player can retry.
type RaceStage int

const (
	StageIdle RaceStage = iota
	StageSubmitting
	StageAwaitingConfirmation
	StageFetchingReceipt
	StageDecodingOutcome
	StageAnimating
	StageResolvedWin
	StageResolvedLose
	StageFailed
)

func (s RaceStage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSubmitting:
		return "submitting"
	case StageAwaitingConfirmation:
		return "awaiting confirmation"
	case StageFetchingReceipt:
		return "fetching receipt"
	case StageDecodingOutcome:
		return "decoding outcome"
	case StageAnimating:
		return "animating"
	case StageResolvedWin:
		return "resolved: win"
	case StageResolvedLose:
		return "resolved: lose"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ChainReader covers every contract read the client issues.
type ChainReader interface {
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenAllowance(ctx context.Context, owner common.Address) (*big.Int, error)
	EntryFee(ctx context.Context) (*big.Int, error)
	Stats(ctx context.Context) (*chain.GameStats, error)
	UserTickets(ctx context.Context, owner common.Address) (int, error)
}

// ChainWriter covers the two write calls: the token approval and the wager.
type ChainWriter interface {
	Approve(ctx context.Context, amount *big.Int) (common.Hash, error)
	PlaceBetAndRace(ctx context.Context, horse int, amount, fee *big.Int) (common.Hash, error)
}

// TxWaiter waits for inclusion and fetches execution receipts.
type TxWaiter interface {
	WaitConfirmed(ctx context.Context, hash common.Hash) error
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// OutcomeDecoder extracts the race outcome from a receipt's logs.
type OutcomeDecoder interface {
	DecodeRaceResult(r *types.Receipt) (*chain.RaceResult, error)
}

// Animator plays the cosmetic race reveal. Play blocks until the sequence
// completes or its context is cancelled.
type Animator interface {
	Play(ctx context.Context, winners [3]int) error
}

const (
	// Bounded retry ceilings for the two polling loops.
	allowanceCheckAttempts = 25
	receiptFetchAttempts   = 30

	defaultPollInterval = 500 * time.Millisecond
	defaultStatusClear  = 5 * time.Second
)

// defaultGasBuffer is a fixed safety margin over the entry fee, roughly 2x
// a typical race's gas cost on Base.
var defaultGasBuffer = big.NewInt(200_000_000_000_000) // 0.0002 ETH

// PonyClientCfg configures a PonyClient. Reader, Writer, Waiter, Decoder
// and Log are required.
type PonyClientCfg struct {
	Player   common.Address
	Reader   ChainReader
	Writer   ChainWriter
	Waiter   TxWaiter
	Decoder  OutcomeDecoder
	Animator Animator              // optional; nil skips the reveal animation
	Store    *selectionstore.Store // optional; nil disables persistence
	Log      slog.Logger

	// Notifications tracks handlers for client events. If nil, the client
	// will initialize a new notification manager.
	Notifications *NotificationManager

	PollInterval     time.Duration // 0 means 500ms
	StatusClearDelay time.Duration // 0 means 5s
	GasBuffer        *big.Int      // nil means 0.0002 ETH
}

// PonyClient drives the approve-then-race transaction lifecycle against the
// game contracts and reports progress through a single status line plus
// update channels.
type PonyClient struct {
	sync.RWMutex
	Player common.Address

	log     slog.Logger
	reader  ChainReader
	writer  ChainWriter
	waiter  TxWaiter
	decoder OutcomeDecoder
	anim    Animator
	store   *selectionstore.Store
	ntfns   *NotificationManager

	pollInterval time.Duration
	statusClear  time.Duration
	gasBuffer    *big.Int

	UpdatesCh chan tea.Msg
	ErrorsCh  chan error

	// Guarded by the embedded mutex.
	horse           int // -1 when unset
	bet             *big.Int
	approved        bool
	approvalPending bool // approval confirmed on-chain but allowance not visible yet
	racing          bool
	showTrack       bool
	stage           RaceStage
	status          string
	statusTimer     *time.Timer

	// processed guards settlement idempotency: each hash handled at most
	// once regardless of how many confirmation signals arrive.
	processed map[common.Hash]struct{}

	// Cached chain reads for display.
	stats         *chain.GameStats
	nativeBal     *big.Int
	tokenBal      *big.Int
	ticketCount   int
	lastOutcome   *chain.RaceResult
	lastPlayerWon bool
}

func NewPonyClient(cfg *PonyClientCfg) (*PonyClient, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("client must have logger")
	}
	if cfg.Reader == nil || cfg.Writer == nil || cfg.Waiter == nil || cfg.Decoder == nil {
		return nil, fmt.Errorf("client must have chain reader, writer, waiter and decoder")
	}

	ntfns := cfg.Notifications
	if ntfns == nil {
		ntfns = NewNotificationManager()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	statusClear := cfg.StatusClearDelay
	if statusClear <= 0 {
		statusClear = defaultStatusClear
	}
	gasBuffer := cfg.GasBuffer
	if gasBuffer == nil {
		gasBuffer = defaultGasBuffer
	}

	pc := &PonyClient{
		Player:       cfg.Player,
		log:          cfg.Log,
		reader:       cfg.Reader,
		writer:       cfg.Writer,
		waiter:       cfg.Waiter,
		decoder:      cfg.Decoder,
		anim:         cfg.Animator,
		store:        cfg.Store,
		ntfns:        ntfns,
		pollInterval: pollInterval,
		statusClear:  statusClear,
		gasBuffer:    gasBuffer,
		UpdatesCh:    make(chan tea.Msg, 64),
		ErrorsCh:     make(chan error, 8),
		horse:        -1,
		stage:        StageIdle,
		processed:    make(map[common.Hash]struct{}),
	}

	if pc.store != nil {
		sel, found, err := pc.store.Load(pc.Player)
		if err != nil {
			pc.log.Warnf("restore selection: %v", err)
		} else if found {
			pc.horse = sel.Horse
			pc.bet = sel.Bet
			pc.log.Infof("restored selection: horse=%d bet=%s", sel.Horse, FormatPony(sel.Bet))
		}
	}
	pc.status = pc.readyStatusLocked()

	return pc, nil
}

// Stage returns the current lifecycle position.
func (pc *PonyClient) Stage() RaceStage {
	pc.RLock()
	defer pc.RUnlock()
	return pc.stage
}

// Status returns the single user-facing status line.
func (pc *PonyClient) Status() string {
	pc.RLock()
	defer pc.RUnlock()
	return pc.status
}

// Racing reports whether a wager attempt is currently in flight.
func (pc *PonyClient) Racing() bool {
	pc.RLock()
	defer pc.RUnlock()
	return pc.racing
}

// TrackVisible reports whether the race track view should be shown.
func (pc *PonyClient) TrackVisible() bool {
	pc.RLock()
	defer pc.RUnlock()
	return pc.showTrack
}

// LastOutcome returns the most recent decoded outcome and whether the
// player's pony was on the podium. Outcome is nil before the first race.
func (pc *PonyClient) LastOutcome() (*chain.RaceResult, bool) {
	pc.RLock()
	defer pc.RUnlock()
	return pc.lastOutcome, pc.lastPlayerWon
}

// CachedStats returns the last fetched game stats, balances and ticket
// count for display.
func (pc *PonyClient) CachedStats() (*chain.GameStats, *big.Int, *big.Int, int) {
	pc.RLock()
	defer pc.RUnlock()
	return pc.stats, pc.nativeBal, pc.tokenBal, pc.ticketCount
}

// CloseTrack hides the track view and refreshes the read caches, mirroring
// the site's close button.
func (pc *PonyClient) CloseTrack(ctx context.Context) {
	pc.Lock()
	pc.showTrack = false
	pc.Unlock()
	pc.notifyUpdate()
	go pc.refreshCaches(ctx)
}

// RefreshAll re-reads every cached value. Failures are logged, never fatal.
func (pc *PonyClient) RefreshAll(ctx context.Context) {
	pc.refreshCaches(ctx)
	if err := pc.RefreshAllowance(ctx); err != nil {
		pc.log.Debugf("refresh allowance: %v", err)
	}
}

func (pc *PonyClient) refreshCaches(ctx context.Context) {
	if stats, err := pc.reader.Stats(ctx); err != nil {
		pc.log.Debugf("refresh stats: %v", err)
	} else {
		pc.Lock()
		pc.stats = stats
		pc.Unlock()
	}
	if bal, err := pc.reader.NativeBalance(ctx, pc.Player); err != nil {
		pc.log.Debugf("refresh native balance: %v", err)
	} else {
		pc.Lock()
		pc.nativeBal = bal
		pc.Unlock()
	}
	if bal, err := pc.reader.TokenBalance(ctx, pc.Player); err != nil {
		pc.log.Debugf("refresh token balance: %v", err)
	} else {
		pc.Lock()
		pc.tokenBal = bal
		pc.Unlock()
	}
	if n, err := pc.reader.UserTickets(ctx, pc.Player); err != nil {
		pc.log.Debugf("refresh tickets: %v", err)
	} else {
		pc.Lock()
		pc.ticketCount = n
		pc.Unlock()
	}
	pc.notifyUpdate()
}

// notifyUpdate nudges the UI without blocking; a slow receiver just misses
// a repaint.
func (pc *PonyClient) notifyUpdate() {
	select {
	case pc.UpdatesCh <- UpdatedMsg{}:
	default:
	}
}

// setStatus replaces the status line and cancels any pending auto-clear.
func (pc *PonyClient) setStatus(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	pc.Lock()
	pc.setStatusLocked(s)
	pc.Unlock()
	pc.announceStatus(s)
}

// setStatusLocked stores the new status line and cancels any pending
// auto-clear. Callers must follow up with announceStatus after releasing
// the lock.
func (pc *PonyClient) setStatusLocked(s string) {
	if pc.statusTimer != nil {
		pc.statusTimer.Stop()
		pc.statusTimer = nil
	}
	pc.status = s
}

// announceStatus fires status handlers and nudges the UI. Handlers run
// without the client lock held, so they may call back into the client.
func (pc *PonyClient) announceStatus(s string) {
	pc.ntfns.notifyStatusChanged(s, time.Now())
	pc.notifyUpdate()
}

// setTransientStatus shows s now and reverts to the ready message after the
// configured delay.
func (pc *PonyClient) setTransientStatus(s string) {
	pc.Lock()
	pc.setStatusLocked(s)
	var t *time.Timer
	t = time.AfterFunc(pc.statusClear, func() {
		pc.Lock()
		if pc.statusTimer != t {
			// A newer status replaced this one before the clear fired.
			pc.Unlock()
			return
		}
		msg := pc.readyStatusLocked()
		pc.status = msg
		pc.statusTimer = nil
		pc.Unlock()
		pc.announceStatus(msg)
	})
	pc.statusTimer = t
	pc.Unlock()
	pc.announceStatus(s)
}

// readyStatusLocked composes the context-appropriate idle message.
func (pc *PonyClient) readyStatusLocked() string {
	switch {
	case pc.horse < 0 || pc.bet == nil:
		return "Pick your pony and bet amount, then hit RACE!"
	case pc.approved:
		return fmt.Sprintf("Ready to race! Pony #%d with %s PONY. Click RACE!", pc.horse+1, FormatPony(pc.bet))
	default:
		return fmt.Sprintf("Ready! Pony #%d with %s PONY bet. Click STEP 1 to approve!", pc.horse+1, FormatPony(pc.bet))
	}
}

// reportErr surfaces err on the errors channel without blocking.
func (pc *PonyClient) reportErr(err error) {
	select {
	case pc.ErrorsCh <- err:
	default:
		pc.log.Warnf("errors channel full, dropping: %v", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
