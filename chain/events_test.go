package chain

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testGameAddr  = common.HexToAddress("0x2B4652Bd6149E407E3F57190E25cdBa1FC9d37d8")
	testPlayer    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testOtherAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func mustGameABI(t *testing.T) abi.ABI {
	t.Helper()
	a, err := abi.JSON(strings.NewReader(pixelPonyABI))
	if err != nil {
		t.Fatalf("parse game ABI: %v", err)
	}
	return a
}

func raceLog(t *testing.T, a abi.ABI, addr common.Address, winners [3]int64, payout int64, won bool) *types.Log {
	t.Helper()
	ev := a.Events["RaceExecuted"]
	var ws [3]*big.Int
	for i, w := range winners {
		ws[i] = big.NewInt(w)
	}
	data, err := ev.Inputs.NonIndexed().Pack(ws, big.NewInt(1000), big.NewInt(payout), won)
	if err != nil {
		t.Fatalf("pack event data: %v", err)
	}
	return &types.Log{
		Address: addr,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(testPlayer.Bytes())},
		Data:    data,
	}
}

func TestDecodeRaceResult(t *testing.T) {
	a := mustGameABI(t)

	lg := raceLog(t, a, testGameAddr, [3]int64{3, 7, 11}, 5000, true)
	res, err := decodeRaceResult(a, testGameAddr, []*types.Log{lg})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Winners != [3]int{3, 7, 11} {
		t.Fatalf("winners = %v, want [3 7 11]", res.Winners)
	}
	if !res.Won {
		t.Fatalf("won = false, want true")
	}
	if res.Payout.Int64() != 5000 {
		t.Fatalf("payout = %v, want 5000", res.Payout)
	}
	if !res.PlayerWon(3) || res.PlayerWon(4) {
		t.Fatalf("PlayerWon membership wrong: %v", res.Winners)
	}
}

func TestDecodeRaceResultSkipsForeignLogs(t *testing.T) {
	a := mustGameABI(t)

	foreign := raceLog(t, a, testOtherAddr, [3]int64{1, 2, 3}, 1, false)
	garbage := &types.Log{Address: testGameAddr, Topics: []common.Hash{a.Events["RaceExecuted"].ID}, Data: []byte{0x01, 0x02}}
	match := raceLog(t, a, testGameAddr, [3]int64{0, 15, 8}, 0, false)

	res, err := decodeRaceResult(a, testGameAddr, []*types.Log{foreign, garbage, match})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Winners != [3]int{0, 15, 8} {
		t.Fatalf("winners = %v, want [0 15 8]", res.Winners)
	}
}

func TestDecodeRaceResultNotFound(t *testing.T) {
	a := mustGameABI(t)

	foreign := raceLog(t, a, testOtherAddr, [3]int64{1, 2, 3}, 1, false)
	_, err := decodeRaceResult(a, testGameAddr, []*types.Log{foreign})
	if !errors.Is(err, ErrNoRaceEvent) {
		t.Fatalf("err = %v, want ErrNoRaceEvent", err)
	}

	_, err = decodeRaceResult(a, testGameAddr, nil)
	if !errors.Is(err, ErrNoRaceEvent) {
		t.Fatalf("err = %v, want ErrNoRaceEvent", err)
	}
}

func TestDecodeRaceResultRejectsMalformedPodium(t *testing.T) {
	a := mustGameABI(t)

	tests := []struct {
		name    string
		winners [3]int64
	}{
		{"duplicate lanes", [3]int64{4, 4, 9}},
		{"lane out of range", [3]int64{1, 2, 16}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lg := raceLog(t, a, testGameAddr, tc.winners, 0, false)
			_, err := decodeRaceResult(a, testGameAddr, []*types.Log{lg})
			if !errors.Is(err, ErrNoRaceEvent) {
				t.Fatalf("err = %v, want ErrNoRaceEvent", err)
			}
		})
	}
}
