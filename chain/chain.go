package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// GameStats mirrors the contract's getGameStats tuple.
type GameStats struct {
	TotalRaces   *big.Int
	TotalPlayers *big.Int
	Jackpot      *big.Int
}

// Config carries everything needed to talk to the deployed contracts.
type Config struct {
	RPCURL       string
	GameAddress  common.Address
	TokenAddress common.Address
	Wallet       *Wallet
	Log          slog.Logger

	// ChainID is fetched from the node when nil.
	ChainID *big.Int
}

// Client wraps an EVM node connection with typed reads and writes against
// the PixelPony game contract and its wager token.
type Client struct {
	log    slog.Logger
	ec     *ethclient.Client
	wallet *Wallet

	gameAddr  common.Address
	tokenAddr common.Address
	gameABI   abi.ABI
	tokenABI  abi.ABI
	chainID   *big.Int

	// Serializes nonce assignment across concurrent writes.
	mu sync.Mutex
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("chain client must have logger")
	}
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("chain client must have wallet")
	}
	ec, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	gameABI, err := abi.JSON(strings.NewReader(pixelPonyABI))
	if err != nil {
		return nil, fmt.Errorf("parse game ABI: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(ponyTokenABI))
	if err != nil {
		return nil, fmt.Errorf("parse token ABI: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == nil {
		chainID, err = ec.ChainID(context.Background())
		if err != nil {
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
	}

	return &Client{
		log:       cfg.Log,
		ec:        ec,
		wallet:    cfg.Wallet,
		gameAddr:  cfg.GameAddress,
		tokenAddr: cfg.TokenAddress,
		gameABI:   gameABI,
		tokenABI:  tokenABI,
		chainID:   chainID,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.ec.Close() }

func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, name string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(name, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	out, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	vals, err := contractABI.Unpack(name, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return vals, nil
}

// NativeBalance returns the player's ETH balance in wei.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	bal, err := c.ec.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("balance at %s: %w", owner.Hex(), err)
	}
	return bal, nil
}

// TokenBalance returns the player's PONY balance.
func (c *Client) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	vals, err := c.call(ctx, c.tokenAddr, c.tokenABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// TokenAllowance returns how much PONY the game contract may move for owner.
func (c *Client) TokenAllowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	vals, err := c.call(ctx, c.tokenAddr, c.tokenABI, "allowance", owner, c.gameAddr)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// EntryFee returns the contract's base fee, attached as value to every race.
func (c *Client) EntryFee(ctx context.Context) (*big.Int, error) {
	vals, err := c.call(ctx, c.gameAddr, c.gameABI, "baseFeeAmount")
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// Stats returns the global race counters and jackpot pool.
func (c *Client) Stats(ctx context.Context) (*GameStats, error) {
	vals, err := c.call(ctx, c.gameAddr, c.gameABI, "getGameStats")
	if err != nil {
		return nil, err
	}
	return &GameStats{
		TotalRaces:   vals[0].(*big.Int),
		TotalPlayers: vals[1].(*big.Int),
		Jackpot:      vals[2].(*big.Int),
	}, nil
}

// UserTickets returns the player's lottery ticket count.
func (c *Client) UserTickets(ctx context.Context, owner common.Address) (int, error) {
	vals, err := c.call(ctx, c.gameAddr, c.gameABI, "getUserTickets", owner)
	if err != nil {
		return 0, err
	}
	tickets, ok := vals[0].([]*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected getUserTickets result type %T", vals[0])
	}
	return len(tickets), nil
}

// Approve authorizes the game contract to move amount PONY for the wallet.
func (c *Client) Approve(ctx context.Context, amount *big.Int) (common.Hash, error) {
	data, err := c.tokenABI.Pack("approve", c.gameAddr, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	summary := fmt.Sprintf("approve %s PONY for %s", amount, c.gameAddr.Hex())
	return c.send(ctx, c.tokenAddr, data, nil, summary)
}

// PlaceBetAndRace submits the wager with the entry fee attached as value.
func (c *Client) PlaceBetAndRace(ctx context.Context, horse int, amount, fee *big.Int) (common.Hash, error) {
	data, err := c.gameABI.Pack("placeBetAndRace", big.NewInt(int64(horse)), amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack placeBetAndRace: %w", err)
	}
	summary := fmt.Sprintf("race pony #%d for %s PONY (fee %s wei)", horse+1, amount, fee)
	return c.send(ctx, c.gameAddr, data, fee, summary)
}

// send builds, signs and broadcasts a legacy transaction. value may be nil.
func (c *Client) send(ctx context.Context, to common.Address, data []byte, value *big.Int, summary string) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.wallet.Address()
	nonce, err := c.ec.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.ec.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch gas price: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}

	gasLimit, err := c.ec.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		// Estimation can fail against lagging nodes; use a generous default.
		gasLimit = 300000
		c.log.Warnf("gas estimation failed, using default %d: %v", gasLimit, err)
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := c.wallet.SignTx(tx, c.chainID, summary)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.ec.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	c.log.Infof("sent tx %s (%s)", signed.Hash().Hex(), summary)
	return signed.Hash(), nil
}

// WaitConfirmed blocks until hash is included in a block or ctx is
// cancelled. Inclusion is detected by the receipt becoming available; the
// receipt itself is re-fetched by the caller's bounded loop.
func (c *Client) WaitConfirmed(ctx context.Context, hash common.Hash) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r, err := c.ec.TransactionReceipt(ctx, hash)
			if err == nil && r != nil {
				c.log.Debugf("tx %s confirmed in block %s", hash.Hex(), r.BlockNumber)
				return nil
			}
		}
	}
}

// Receipt fetches the execution receipt for hash. It fails while the
// receipt is not yet indexed; callers retry with bounded attempts.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r, err := c.ec.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", hash.Hex(), err)
	}
	return r, nil
}
