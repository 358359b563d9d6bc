package client

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/NFTcolumn/pixelponies/chain"
)

var testPlayer = common.HexToAddress("0x1111111111111111111111111111111111111111")

type fakeReader struct {
	mu sync.Mutex

	nativeBal *big.Int
	tokenBal  *big.Int
	fee       *big.Int
	stats     *chain.GameStats
	tickets   int

	// allowance is returned once allowanceSeq is exhausted.
	allowance      *big.Int
	allowanceSeq   []*big.Int
	allowanceReads int

	feeErr error
	balErr error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		nativeBal: big.NewInt(1e18),
		tokenBal:  ponies(1_000_000_000),
		fee:       big.NewInt(1e14),
		stats:     &chain.GameStats{TotalRaces: big.NewInt(42), TotalPlayers: big.NewInt(7), Jackpot: ponies(1_000_000)},
		allowance: big.NewInt(0),
	}
}

func (f *fakeReader) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balErr != nil {
		return nil, f.balErr
	}
	return new(big.Int).Set(f.nativeBal), nil
}

func (f *fakeReader) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.tokenBal), nil
}

func (f *fakeReader) TokenAllowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowanceReads++
	if len(f.allowanceSeq) > 0 {
		v := f.allowanceSeq[0]
		f.allowanceSeq = f.allowanceSeq[1:]
		return new(big.Int).Set(v), nil
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeReader) EntryFee(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return new(big.Int).Set(f.fee), nil
}

func (f *fakeReader) Stats(ctx context.Context) (*chain.GameStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, nil
}

func (f *fakeReader) UserTickets(ctx context.Context, owner common.Address) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets, nil
}

type fakeWriter struct {
	mu sync.Mutex

	approveCalls int
	approveErr   error
	approveHash  common.Hash

	raceCalls  int
	raceErr    error
	raceHash   common.Hash
	lastHorse  int
	lastAmount *big.Int
	lastFee    *big.Int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		approveHash: common.HexToHash("0xaaaa"),
		raceHash:    common.HexToHash("0xbbbb"),
	}
}

func (f *fakeWriter) Approve(ctx context.Context, amount *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approveCalls++
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	return f.approveHash, nil
}

func (f *fakeWriter) PlaceBetAndRace(ctx context.Context, horse int, amount, fee *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raceCalls++
	f.lastHorse = horse
	f.lastAmount = new(big.Int).Set(amount)
	f.lastFee = new(big.Int).Set(fee)
	if f.raceErr != nil {
		return common.Hash{}, f.raceErr
	}
	return f.raceHash, nil
}

type fakeWaiter struct {
	mu sync.Mutex

	waitErr error

	// receiptAfter delays the receipt by that many fetches; 0 serves it
	// immediately. A nil receipt with receiptErr nil means never found.
	receipt      *types.Receipt
	receiptAfter int
	receiptErr   error
	fetches      int
}

func (f *fakeWaiter) WaitConfirmed(ctx context.Context, hash common.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeWaiter) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receipt == nil || f.fetches <= f.receiptAfter {
		return nil, errors.New("not found")
	}
	return f.receipt, nil
}

type fakeDecoder struct {
	result *chain.RaceResult
	err    error
	calls  int
}

func (f *fakeDecoder) DecodeRaceResult(r *types.Receipt) (*chain.RaceResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeAnim struct {
	mu      sync.Mutex
	plays   int
	winners [3]int
}

func (f *fakeAnim) Play(ctx context.Context, winners [3]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	f.winners = winners
	return nil
}

type testHarness struct {
	pc      *PonyClient
	reader  *fakeReader
	writer  *fakeWriter
	waiter  *fakeWaiter
	decoder *fakeDecoder
	anim    *fakeAnim
}

func newTestClient(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		reader:  newFakeReader(),
		writer:  newFakeWriter(),
		waiter:  &fakeWaiter{},
		decoder: &fakeDecoder{},
		anim:    &fakeAnim{},
	}
	pc, err := NewPonyClient(&PonyClientCfg{
		Player:           testPlayer,
		Reader:           h.reader,
		Writer:           h.writer,
		Waiter:           h.waiter,
		Decoder:          h.decoder,
		Animator:         h.anim,
		Log:              slog.Disabled,
		PollInterval:     time.Millisecond,
		StatusClearDelay: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	h.pc = pc
	return h
}

func successReceipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}
}
