package cmd

import (
	"context"
	"errors"

	"github.com/VectorBits/fundlab/contracts"
	"github.com/VectorBits/fundlab/internal/chain"
	"github.com/VectorBits/fundlab/internal/dbutil"
	"github.com/VectorBits/fundlab/internal/deployments"
	"github.com/VectorBits/fundlab/internal/logger"
	"github.com/VectorBits/fundlab/internal/scripts"
	"github.com/VectorBits/fundlab/internal/solc"
	"github.com/VectorBits/fundlab/internal/ui"
	"github.com/VectorBits/fundlab/internal/verify"
)

// session is one connected network plus what the commands build on it.
type session struct {
	network  *chain.Network
	ledger   *dbutil.Ledger
	verifier *verify.Client
	build    *solc.Build
	env      *deployments.Env
}

type sessionOptions struct {
	compile bool
	scripts scripts.Options
}

func (rc *RootCommand) compile(ctx context.Context) (*solc.Build, error) {
	sources, err := contracts.Sources()
	if err != nil {
		return nil, err
	}
	stop := ui.StartSpinner("Compiling contracts...")
	build, err := solc.Compile(ctx, sources, solc.Options{
		Version:          rc.config.Solc.Version,
		OptimizerEnabled: rc.config.Solc.OptimizerEnabled,
		OptimizerRuns:    rc.config.Solc.OptimizerRuns,
	})
	close(stop)
	if err != nil {
		return nil, err
	}
	for _, w := range build.Warnings {
		logger.Warn("%s", w)
	}
	return build, nil
}

func (rc *RootCommand) openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	s := &session{}
	var err error
	if opts.compile {
		if s.build, err = rc.compile(ctx); err != nil {
			return nil, err
		}
	}

	s.network, err = chain.Connect(ctx, rc.config, rc.network)
	if err != nil {
		return nil, err
	}

	envOpts := []deployments.Option{
		deployments.WithNamedAccounts(rc.config.NamedAccounts),
		deployments.WithScripts(scripts.All(opts.scripts)...),
	}
	if !s.network.Dev {
		if s.ledger, err = dbutil.Open(rc.config.Database); err != nil {
			s.Close()
			return nil, err
		}
		envOpts = append(envOpts, deployments.WithLedger(s.ledger))

		s.verifier, err = verify.NewClient(s.network.Explorer, s.network.ChainID.Uint64(), rc.config.Proxy)
		switch {
		case errors.Is(err, verify.ErrNoAPIKey):
			logger.Debug("No explorer API key for %s, verification disabled", s.network.Name)
		case err != nil:
			s.Close()
			return nil, err
		default:
			envOpts = append(envOpts, deployments.WithVerifier(s.verifier))
		}
	}
	s.env = deployments.NewEnv(s.network, s.build, envOpts...)
	return s, nil
}

func (s *session) Close() {
	if s.verifier != nil {
		s.verifier.Close()
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			logger.Warn("Failed to close ledger: %v", err)
		}
	}
	if s.network != nil {
		s.network.Close()
	}
}
