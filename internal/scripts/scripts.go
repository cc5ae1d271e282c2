// Package scripts holds the tagged deploy scripts run by the deploy command
// and by test fixtures.
package scripts

import (
	"math/big"

	"github.com/VectorBits/fundlab/internal/config"
	"github.com/VectorBits/fundlab/internal/deployments"
	"github.com/VectorBits/fundlab/internal/report"
)

const (
	TagAll     = "all"
	TagMocks   = "mocks"
	TagFundMe  = "fundme"
	TagStorage = "storage"
)

// Options carries the settings the scripts read besides the network.
type Options struct {
	MockDecimals      uint8
	MockInitialAnswer *big.Int
	// StorageSlots is how many leading slots the storage script walks.
	StorageSlots uint64
	// OnStorageReport receives the storage script's report when set.
	OnStorageReport func(*report.StorageReport)
}

func DefaultOptions() Options {
	return Options{
		MockDecimals:      config.DefaultMockDecimals,
		MockInitialAnswer: big.NewInt(config.DefaultMockAnswer),
		StorageSlots:      config.DefaultStorageSlots,
	}
}

func OptionsFromConfig(cfg *config.AppConfig) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	opts.MockDecimals = cfg.Mock.Decimals
	opts.MockInitialAnswer = big.NewInt(cfg.Mock.InitialAnswer)
	return opts
}

// All returns every deploy script; Env sorts them by name.
func All(opts Options) []deployments.Script {
	return []deployments.Script{
		DeployMocks(opts),
		DeployFundMe(),
		DeployStorage(opts),
	}
}
