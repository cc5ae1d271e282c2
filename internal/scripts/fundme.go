package scripts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VectorBits/fundlab/contracts"
	"github.com/VectorBits/fundlab/internal/deployments"
)

func DeployFundMe() deployments.Script {
	return deployments.Script{
		Name: "01-deploy-fund-me",
		Tags: []string{TagAll, TagFundMe},
		Run: func(ctx context.Context, env *deployments.Env) error {
			log := env.Logger()
			feed, err := priceFeed(env)
			if err != nil {
				return err
			}
			d, err := env.Deploy(ctx, contracts.FundMe, deployments.DeployOptions{
				Args:              []any{feed},
				Log:               true,
				WaitConfirmations: confirmations(env),
			})
			if err != nil {
				return err
			}
			if _, err := env.Verify(ctx, d); err != nil {
				return err
			}
			log.Info().Msg("----------------------------------------------------")
			return nil
		},
	}
}

// priceFeed is the mock on development chains and the configured
// ETH/USD aggregator everywhere else.
func priceFeed(env *deployments.Env) (common.Address, error) {
	if env.Network.Dev {
		mock, err := env.Get(contracts.MockV3Aggregator)
		if err != nil {
			return common.Address{}, fmt.Errorf("price feed mock: %w", err)
		}
		return mock.Address, nil
	}
	if env.Network.PriceFeed == (common.Address{}) {
		return common.Address{}, fmt.Errorf("network %s has no eth_usd_price_feed configured", env.Network.Name)
	}
	return env.Network.PriceFeed, nil
}

func confirmations(env *deployments.Env) uint64 {
	if env.Network.Confirmations == 0 {
		return 1
	}
	return env.Network.Confirmations
}
