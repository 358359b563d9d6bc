package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vctt94/bisonbotkit/logging"
	"github.com/vctt94/bisonbotkit/utils"
	"golang.org/x/sync/errgroup"

	"github.com/NFTcolumn/pixelponies/chain"
	"github.com/NFTcolumn/pixelponies/client"
	"github.com/NFTcolumn/pixelponies/raceanim"
	"github.com/NFTcolumn/pixelponies/selectionstore"
)

var (
	datadir       = flag.String("datadir", "", "Directory to load config file from")
	flagRPCURL    = flag.String("rpcurl", "", "JSON-RPC endpoint of the chain node")
	flagGameAddr  = flag.String("gameaddress", "", "Race game contract address")
	flagTokenAddr = flag.String("tokenaddress", "", "PONY token contract address")
	flagKeyFile   = flag.String("keyfile", "", "Path to the hex-encoded wallet key file")
)

func realMain() error {
	flag.Parse()

	if *datadir == "" {
		*datadir = utils.AppDataDir("ponyclient", false)
	}

	// Load consolidated app config and apply overrides from flags
	appCfg, err := client.LoadAppConfig(*datadir, client.ConfigOverrides{
		RPCURL:       *flagRPCURL,
		GameAddress:  *flagGameAddr,
		TokenAddress: *flagTokenAddr,
		KeyFile:      *flagKeyFile,
	})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Logging
	useStdout := false
	lb, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        filepath.Join(appCfg.DataDir, "logs", "ponyclient.log"),
		DebugLevel:     appCfg.BR.Debug,
		MaxLogFiles:    10,
		MaxBufferLines: 1000,
		UseStdout:      &useStdout,
	})
	if err != nil {
		return err
	}

	log := lb.Logger("PonyClient")

	wallet, err := chain.LoadWallet(appCfg.KeyFile)
	if err != nil {
		return fmt.Errorf("load wallet key from %s: %w", appCfg.KeyFile, err)
	}

	if !common.IsHexAddress(appCfg.GameAddress) {
		return fmt.Errorf("invalid game contract address %q", appCfg.GameAddress)
	}
	if !common.IsHexAddress(appCfg.TokenAddress) {
		return fmt.Errorf("invalid token contract address %q", appCfg.TokenAddress)
	}
	cc, err := chain.NewClient(&chain.Config{
		RPCURL:       appCfg.RPCURL,
		GameAddress:  common.HexToAddress(appCfg.GameAddress),
		TokenAddress: common.HexToAddress(appCfg.TokenAddress),
		Wallet:       wallet,
		Log:          lb.Logger("CHAIN"),
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", appCfg.RPCURL, err)
	}
	defer cc.Close()

	store, err := selectionstore.Open(filepath.Join(appCfg.DataDir, "selections.db"))
	if err != nil {
		return fmt.Errorf("open selection store: %w", err)
	}
	defer store.Close()

	as := &appstate{
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
		logBackend: lb,
		dataDir:    appCfg.DataDir,
		mode:       pickMode,
	}

	pc, err := client.NewPonyClient(&client.PonyClientCfg{
		Player:   wallet.Address(),
		Reader:   cc,
		Writer:   cc,
		Waiter:   cc,
		Decoder:  cc,
		Animator: &trackAnimator{driver: raceanim.New(lb.Logger("ANIM")), as: as},
		Store:    store,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("create pony client: %w", err)
	}
	as.pc = pc

	log.Infof("Connected to %s as %s", appCfg.RPCURL, wallet.Address())

	// Warm the display caches and recover any prior approval.
	g.Go(func() error {
		pc.RefreshAll(gctx)
		return nil
	})

	defer as.cancel()

	p := tea.NewProgram(as)
	_, err = p.Run()
	if err != nil {
		return err
	}

	return g.Wait()
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
