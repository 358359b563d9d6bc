package client

import (
	"fmt"
	"path/filepath"

	brconfig "github.com/vctt94/bisonbotkit/config"
	"github.com/vctt94/bisonbotkit/utils"
)

// Contract deployments on Base mainnet.
const (
	DefaultGameAddress  = "0x2B4652Bd6149E407E3F57190E25cdBa1FC9d37d8"
	DefaultTokenAddress = "0x6ab297799335E7b0f60d9e05439Df156cf694Ba7"
	DefaultRPCURL       = "https://mainnet.base.org"
)

// ConfigOverrides carries optional CLI/runtime overrides for config values.
type ConfigOverrides struct {
	RPCURL       string
	GameAddress  string
	TokenAddress string
	KeyFile      string
}

// AppConfig is the consolidated configuration used by the pony client app.
type AppConfig struct {
	// Absolute directory where the config/logs live.
	DataDir string
	// BR holds the loaded bisonbotkit client configuration.
	BR *brconfig.ClientConfig
	// Chain settings (also persisted in BR.ExtraConfig).
	RPCURL       string
	GameAddress  string
	TokenAddress string
	KeyFile      string
}

// LoadAppConfig loads ponyclient configuration from disk, applies overrides,
// and returns a consolidated AppConfig. If datadir is empty, it uses the
// default application data dir for "ponyclient".
func LoadAppConfig(datadir string, ov ConfigOverrides) (*AppConfig, error) {
	if datadir == "" {
		datadir = utils.AppDataDir("ponyclient", false)
	}

	cfg, err := brconfig.LoadClientConfig(datadir, "ponyclient.conf")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Chain settings live in ExtraConfig; let overrides win but persist in cfg
	rpcURL := cfg.GetString("rpcurl")
	if ov.RPCURL != "" {
		rpcURL = ov.RPCURL
		cfg.SetString("rpcurl", rpcURL)
	}
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}

	gameAddr := cfg.GetString("gameaddress")
	if ov.GameAddress != "" {
		gameAddr = ov.GameAddress
		cfg.SetString("gameaddress", gameAddr)
	}
	if gameAddr == "" {
		gameAddr = DefaultGameAddress
	}

	tokenAddr := cfg.GetString("tokenaddress")
	if ov.TokenAddress != "" {
		tokenAddr = ov.TokenAddress
		cfg.SetString("tokenaddress", tokenAddr)
	}
	if tokenAddr == "" {
		tokenAddr = DefaultTokenAddress
	}

	keyFile := cfg.GetString("keyfile")
	if ov.KeyFile != "" {
		keyFile = ov.KeyFile
		cfg.SetString("keyfile", keyFile)
	}
	if keyFile == "" {
		keyFile = filepath.Join(datadir, "pony.key")
	}

	return &AppConfig{
		DataDir:      datadir,
		BR:           cfg,
		RPCURL:       rpcURL,
		GameAddress:  gameAddr,
		TokenAddress: tokenAddr,
		KeyFile:      keyFile,
	}, nil
}
