package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Testnet            bool   `long:"testnet" description:"Use the test network"`
	Simnet             bool   `long:"simnet" description:"Use the simulation test network"`
	Devnet             bool   `long:"devnet" description:"Use the development test network"`
	OverrideParamsFile string `long:"override-params-file" description:"Overrides the currency parameters (allowed only on devnet)"`

	ActiveNetParams *chaincfg.Params
}

type overrideParamsConfig struct {
	TargetTimePerBlockInSeconds *int64  `json:"targetTimePerBlockInSeconds"`
	DifficultyWindow            *uint32 `json:"difficultyWindow"`
	InitialDifficulty           *uint64 `json:"initialDifficulty"`
	SkipProofOfWork             *bool   `json:"skipProofOfWork"`
	MinedMoneyUnlockWindow      *uint32 `json:"minedMoneyUnlockWindow"`
	RewardBlocksWindow          *uint32 `json:"rewardBlocksWindow"`
	BlockGrantedFullRewardZone  *uint64 `json:"blockGrantedFullRewardZone"`
	MinimumFee                  *uint64 `json:"minimumFee"`
	MinMixin                    *uint64 `json:"minMixin"`
	MaxMixin                    *uint64 `json:"maxMixin"`
	MempoolTransactionLifetime  *string `json:"mempoolTransactionLifetime"`
}

// ResolveNetwork parses the network command line argument and sets ActiveNetParams accordingly.
// It returns error if more than one network was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// default net is main net
	params := chaincfg.MainnetParams
	numNets := 0
	if networkFlags.Testnet {
		numNets++
		params = chaincfg.TestnetParams
	}
	if networkFlags.Simnet {
		numNets++
		params = chaincfg.SimnetParams
	}
	if networkFlags.Devnet {
		numNets++
		params = chaincfg.DevnetParams
	}
	if numNets > 1 {
		message := "Multiple networks parameters (testnet, simnet, devnet, etc.) cannot be used " +
			"together. Please choose only one network"
		err := errors.Errorf(message)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return err
	}
	networkFlags.ActiveNetParams = &params

	err := networkFlags.overrideParams()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *chaincfg.Params {
	return networkFlags.ActiveNetParams
}

func (networkFlags *NetworkFlags) overrideParams() error {
	if networkFlags.OverrideParamsFile == "" {
		return nil
	}

	if !networkFlags.Devnet {
		return errors.Errorf("override-params-file is allowed only when using devnet")
	}

	overrideParamsFile, err := os.Open(networkFlags.OverrideParamsFile)
	if err != nil {
		return err
	}
	defer overrideParamsFile.Close()

	decoder := json.NewDecoder(overrideParamsFile)
	decoder.DisallowUnknownFields()
	config := &overrideParamsConfig{}
	err = decoder.Decode(config)
	if err != nil {
		return errors.Wrapf(err, "error parsing %s", networkFlags.OverrideParamsFile)
	}

	params := networkFlags.ActiveNetParams
	if config.TargetTimePerBlockInSeconds != nil {
		params.TargetTimePerBlock = time.Duration(*config.TargetTimePerBlockInSeconds) * time.Second
	}
	if config.DifficultyWindow != nil {
		params.DifficultyWindow = *config.DifficultyWindow
	}
	if config.InitialDifficulty != nil {
		params.InitialDifficulty = *config.InitialDifficulty
	}
	if config.SkipProofOfWork != nil {
		params.SkipProofOfWork = *config.SkipProofOfWork
	}
	if config.MinedMoneyUnlockWindow != nil {
		params.MinedMoneyUnlockWindow = *config.MinedMoneyUnlockWindow
	}
	if config.RewardBlocksWindow != nil {
		params.RewardBlocksWindow = *config.RewardBlocksWindow
	}
	if config.BlockGrantedFullRewardZone != nil {
		params.BlockGrantedFullRewardZone = *config.BlockGrantedFullRewardZone
	}
	if config.MinimumFee != nil {
		params.MinimumFee = *config.MinimumFee
	}
	if config.MinMixin != nil {
		params.MinMixin = *config.MinMixin
	}
	if config.MaxMixin != nil {
		params.MaxMixin = *config.MaxMixin
	}
	if config.MempoolTransactionLifetime != nil {
		lifetime, err := time.ParseDuration(*config.MempoolTransactionLifetime)
		if err != nil {
			return errors.Wrapf(err, "invalid mempoolTransactionLifetime")
		}
		params.MempoolTransactionLifetime = lifetime
	}

	if params.MinMixin > params.MaxMixin {
		return errors.Errorf("minMixin %d is above maxMixin %d", params.MinMixin, params.MaxMixin)
	}
	if params.TargetTimePerBlock <= 0 {
		return errors.Errorf("targetTimePerBlockInSeconds must be positive")
	}
	return nil
}
