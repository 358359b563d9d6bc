package client

import (
	"math/big"

	"github.com/NFTcolumn/pixelponies/raceanim"
	"github.com/NFTcolumn/pixelponies/selectionstore"
)

// Selection returns the current pick. Horse is -1 when unset, bet nil when
// unset.
func (pc *PonyClient) Selection() (int, *big.Int) {
	pc.RLock()
	defer pc.RUnlock()
	return pc.horse, pc.bet
}

// SelectHorse picks a lane. Out-of-range lanes are ignored. Selection is
// locked while a wager is in flight.
func (pc *PonyClient) SelectHorse(horse int) {
	if horse < 0 || horse >= raceanim.Lanes {
		pc.log.Warnf("ignoring out of range horse %d", horse)
		return
	}
	pc.Lock()
	if pc.racing {
		pc.Unlock()
		return
	}
	pc.horse = horse
	msg := pc.readyStatusLocked()
	pc.setStatusLocked(msg)
	pc.Unlock()
	pc.persistSelection()
	pc.announceStatus(msg)
}

// SelectBet picks a wager amount from the fixed menu. Changing the bet
// invalidates any prior approval, approval is amount-specific.
func (pc *PonyClient) SelectBet(amount *big.Int) {
	if !ValidBet(amount) {
		pc.log.Warnf("ignoring bet outside menu: %s", amount)
		return
	}
	pc.Lock()
	if pc.racing {
		pc.Unlock()
		return
	}
	pc.bet = new(big.Int).Set(amount)
	pc.approved = false
	pc.approvalPending = false
	msg := pc.readyStatusLocked()
	pc.setStatusLocked(msg)
	pc.Unlock()
	pc.persistSelection()
	pc.announceStatus(msg)
}

// ClearSelection resets horse and bet and drops the persisted record.
func (pc *PonyClient) ClearSelection() {
	pc.Lock()
	if pc.racing {
		pc.Unlock()
		return
	}
	pc.horse = -1
	pc.bet = nil
	pc.approved = false
	pc.approvalPending = false
	msg := pc.readyStatusLocked()
	pc.setStatusLocked(msg)
	pc.Unlock()
	if pc.store != nil {
		if err := pc.store.Clear(pc.Player); err != nil {
			pc.log.Warnf("clear selection: %v", err)
		}
	}
	pc.announceStatus(msg)
}

func (pc *PonyClient) persistSelection() {
	if pc.store == nil {
		return
	}
	pc.RLock()
	sel := selectionstore.Selection{Horse: pc.horse, Bet: pc.bet}
	pc.RUnlock()
	if err := pc.store.Save(pc.Player, sel); err != nil {
		pc.log.Warnf("persist selection: %v", err)
	}
}
