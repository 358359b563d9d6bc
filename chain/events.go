package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoRaceEvent is returned when none of a receipt's logs decodes as a
// RaceExecuted event from the game contract.
var ErrNoRaceEvent = errors.New("no RaceExecuted event in receipt logs")

// RaceResult is the decoded settlement outcome. Winners holds the podium
// lane indices ranked 1st/2nd/3rd.
type RaceResult struct {
	Winners [3]int
	Payout  *big.Int
	Won     bool
}

// DecodeRaceResult scans the receipt's logs for the game contract's
// RaceExecuted event. Logs from other contracts and logs that fail to
// decode are skipped rather than treated as fatal.
func (c *Client) DecodeRaceResult(r *types.Receipt) (*RaceResult, error) {
	return decodeRaceResult(c.gameABI, c.gameAddr, r.Logs)
}

func decodeRaceResult(gameABI abi.ABI, gameAddr common.Address, logs []*types.Log) (*RaceResult, error) {
	ev, ok := gameABI.Events["RaceExecuted"]
	if !ok {
		return nil, fmt.Errorf("game ABI missing RaceExecuted event")
	}

	for _, lg := range logs {
		if lg == nil || lg.Address != gameAddr {
			continue
		}
		if len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		vals, err := ev.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(vals) < 4 {
			continue
		}
		raw, ok := vals[0].([3]*big.Int)
		if !ok {
			continue
		}
		payout, ok := vals[2].(*big.Int)
		if !ok {
			continue
		}
		won, ok := vals[3].(bool)
		if !ok {
			continue
		}

		res := &RaceResult{Payout: payout, Won: won}
		valid := true
		seen := make(map[int]bool, 3)
		for i, w := range raw {
			if w == nil || !w.IsInt64() || w.Int64() < 0 || w.Int64() >= 16 {
				valid = false
				break
			}
			lane := int(w.Int64())
			if seen[lane] {
				valid = false
				break
			}
			seen[lane] = true
			res.Winners[i] = lane
		}
		if !valid {
			continue
		}
		return res, nil
	}
	return nil, ErrNoRaceEvent
}

// PlayerWon reports whether the given lane finished on the podium.
func (r *RaceResult) PlayerWon(lane int) bool {
	for _, w := range r.Winners {
		if w == lane {
			return true
		}
	}
	return false
}
