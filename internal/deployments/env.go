// Package deployments is the deployment environment the scripts and tests
// run against: named accounts, compiled artifacts, deploy/get, bindings,
// fixtures and revert decoding.
package deployments

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/VectorBits/fundlab/internal/chain"
	"github.com/VectorBits/fundlab/internal/dbutil"
	"github.com/VectorBits/fundlab/internal/logger"
	"github.com/VectorBits/fundlab/internal/solc"
)

// Deployment is a contract the environment deployed or reused.
type Deployment struct {
	Name     string
	Contract string
	Address  common.Address
	TxHash   common.Hash
	Receipt  *types.Receipt
	ABI      abi.ABI
	Args     []any
	// EncodedArgs is the ABI-encoded constructor input appended to the bytecode.
	EncodedArgs []byte
	Bytecode    []byte
	Deployer    common.Address
	// Newly is false when the deployment was reused from the ledger.
	Newly bool
}

// Env binds a network, a compiler build and the deploy scripts together.
type Env struct {
	Network       *chain.Network
	Build         *solc.Build
	Ledger        *dbutil.Ledger
	NamedAccounts map[string]int
	// Verifier is nil when no explorer API key is configured.
	Verifier Verifier

	mu          sync.Mutex
	deployments map[string]*Deployment
	scripts     []Script
	fixtures    map[string]bool
	log         zerolog.Logger
}

// Verifier publishes a deployment's source to a block explorer.
type Verifier interface {
	Verify(ctx context.Context, d *Deployment, build *solc.Build) error
}

type Option func(*Env)

func WithVerifier(v Verifier) Option {
	return func(e *Env) { e.Verifier = v }
}

func WithLedger(l *dbutil.Ledger) Option {
	return func(e *Env) { e.Ledger = l }
}

func WithNamedAccounts(named map[string]int) Option {
	return func(e *Env) {
		if len(named) > 0 {
			e.NamedAccounts = named
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Env) { e.log = l }
}

func WithScripts(scripts ...Script) Option {
	return func(e *Env) { e.scripts = append(e.scripts, scripts...) }
}

func NewEnv(network *chain.Network, build *solc.Build, opts ...Option) *Env {
	e := &Env{
		Network:       network,
		Build:         build,
		NamedAccounts: map[string]int{"deployer": 0, "user": 1},
		deployments:   make(map[string]*Deployment),
		fixtures:      make(map[string]bool),
		log:           logger.New("deploy").With().Str(logger.FieldNetwork, network.Name).Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	sort.SliceStable(e.scripts, func(i, j int) bool { return e.scripts[i].Name < e.scripts[j].Name })
	return e
}

// Logger is the environment's deploy logger, shared by its scripts.
func (e *Env) Logger() *zerolog.Logger {
	return &e.log
}

// NamedAccount resolves a configured account name such as "deployer".
func (e *Env) NamedAccount(name string) (*chain.Account, error) {
	idx, ok := e.NamedAccounts[name]
	if !ok {
		return nil, fmt.Errorf("unknown named account %q", name)
	}
	return e.Network.Account(idx)
}

func (e *Env) Artifact(name string) (*solc.Artifact, error) {
	if e.Build == nil {
		return nil, fmt.Errorf("no compiled artifacts loaded, cannot find %s", name)
	}
	return e.Build.Artifact(name)
}

// Get returns a deployment made by this environment.
func (e *Env) Get(name string) (*Deployment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.deployments[name]
	if !ok {
		return nil, fmt.Errorf("no deployment found for %s", name)
	}
	return d, nil
}

// Deployments lists every known deployment sorted by name.
func (e *Env) Deployments() []*Deployment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Deployment, 0, len(e.deployments))
	for _, d := range e.deployments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *Env) record(d *Deployment) {
	e.mu.Lock()
	e.deployments[d.Name] = d
	e.mu.Unlock()
}

// GetContract binds a deployment to signer; a nil signer means the deployer.
func (e *Env) GetContract(name string, signer *chain.Account) (*Contract, error) {
	d, err := e.Get(name)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		if signer, err = e.NamedAccount("deployer"); err != nil {
			return nil, err
		}
	}
	return newContract(e, d.Name, d.Address, d.ABI, signer), nil
}

// At binds an arbitrary address with a compiled contract's ABI.
func (e *Env) At(contractName string, address common.Address, signer *chain.Account) (*Contract, error) {
	artifact, err := e.Artifact(contractName)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		if signer, err = e.NamedAccount("deployer"); err != nil {
			return nil, err
		}
	}
	return newContract(e, contractName, address, artifact.ABI, signer), nil
}

// Verify publishes d when running on a live network with a verifier set.
// It reports whether verification was attempted.
func (e *Env) Verify(ctx context.Context, d *Deployment) (bool, error) {
	if e.Network.Dev || e.Verifier == nil {
		return false, nil
	}
	if err := e.Verifier.Verify(ctx, d, e.Build); err != nil {
		return true, err
	}
	if err := e.Ledger.MarkVerified(ctx, e.Network.Name, d.Name); err != nil {
		e.log.Warn().Err(err).Str(logger.FieldContract, d.Name).Msg("Failed to record verification")
	}
	return true, nil
}
