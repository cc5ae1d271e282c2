package scripts

import (
	"context"

	"github.com/VectorBits/fundlab/contracts"
	"github.com/VectorBits/fundlab/internal/deployments"
)

// DeployMocks deploys the price feed mock on development chains only.
func DeployMocks(opts Options) deployments.Script {
	return deployments.Script{
		Name: "00-deploy-mocks",
		Tags: []string{TagAll, TagMocks},
		Skip: func(env *deployments.Env) bool { return !env.Network.Dev },
		Run: func(ctx context.Context, env *deployments.Env) error {
			log := env.Logger()
			log.Info().Msg("Local network detected! Deploying mocks...")
			_, err := env.Deploy(ctx, contracts.MockV3Aggregator, deployments.DeployOptions{
				Args: []any{opts.MockDecimals, opts.MockInitialAnswer},
				Log:  true,
			})
			if err != nil {
				return err
			}
			log.Info().Msg("Mocks deployed!")
			return nil
		},
	}
}
