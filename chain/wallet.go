package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignRejected is returned when the wallet's confirm hook declines to sign
// a transaction. Callers treat it as a user rejection, not a fault.
var ErrSignRejected = errors.New("signing rejected by wallet")

// Wallet holds the player's signing key. ConfirmFn, when set, is consulted
// before every signature; returning false aborts the send with
// ErrSignRejected.
type Wallet struct {
	priv *ecdsa.PrivateKey
	addr common.Address

	ConfirmFn func(summary string) bool
}

// LoadWallet reads a hex-encoded private key from path.
func LoadWallet(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	keyHex := strings.TrimSpace(string(raw))
	keyHex = strings.TrimPrefix(keyHex, "0x")
	priv, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	return NewWallet(priv), nil
}

func NewWallet(priv *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		priv: priv,
		addr: crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// Address returns the account the wallet signs for.
func (w *Wallet) Address() common.Address { return w.addr }

// SignTx signs tx for chainID, honoring the confirm hook.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int, summary string) (*types.Transaction, error) {
	if w.ConfirmFn != nil && !w.ConfirmFn(summary) {
		return nil, ErrSignRejected
	}
	return types.SignTx(tx, types.NewEIP155Signer(chainID), w.priv)
}
