package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/VectorBits/fundlab/internal"
	"github.com/VectorBits/fundlab/internal/logger"
)

var ErrNoHealthyRPC = errors.New("all RPC nodes are unavailable")

// Endpoint pairs the typed client with the raw connection it wraps; the raw
// one is needed for non-eth namespaces such as debug_traceTransaction.
type Endpoint struct {
	URL    string
	RPC    *rpc.Client
	Client *ethclient.Client
}

// RPCManager keeps one connection per configured URL and fails over to the
// next healthy one.
type RPCManager struct {
	network           string
	endpoints         []*Endpoint
	current           int
	mutex             sync.RWMutex
	timeout           time.Duration
	healthCacheWindow time.Duration
	lastHealthyAt     []time.Time
	log               zerolog.Logger
}

func dialEndpoint(ctx context.Context, rawURL string, timeout time.Duration, proxy string) (*Endpoint, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("empty rpc url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	var opts []rpc.ClientOption
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		httpClient, err := internal.CreateProxyHTTPClient(proxy, timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rpc.WithHTTPClient(httpClient))
	}
	rpcClient, err := rpc.DialOptions(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Endpoint{URL: rawURL, RPC: rpcClient, Client: ethclient.NewClient(rpcClient)}, nil
}

func NewRPCManager(ctx context.Context, network string, urls []string, timeout time.Duration, proxy string) (*RPCManager, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	m := &RPCManager{
		network:           network,
		endpoints:         make([]*Endpoint, len(urls)),
		timeout:           timeout,
		healthCacheWindow: 5 * time.Second,
		lastHealthyAt:     make([]time.Time, len(urls)),
		log:               logger.New("rpc").With().Str(logger.FieldNetwork, network).Logger(),
	}

	connected := 0
	for i, u := range urls {
		ep, err := dialEndpoint(ctx, u, timeout, proxy)
		if err != nil {
			m.log.Warn().Err(err).Str(logger.FieldURL, u).Msg("Failed to connect to RPC")
			continue
		}
		m.endpoints[i] = ep
		connected++
	}
	if connected == 0 {
		return nil, fmt.Errorf("network %s: %w", network, ErrNoHealthyRPC)
	}
	return m, nil
}

// GetEndpoint returns the current endpoint if it answered eth_blockNumber
// recently, otherwise the next healthy one.
func (r *RPCManager) GetEndpoint(ctx context.Context) (*Endpoint, error) {
	r.mutex.RLock()
	current := r.current
	ep := r.endpoints[current]
	lastHealthy := r.lastHealthyAt[current]
	r.mutex.RUnlock()

	if ep != nil {
		if !lastHealthy.IsZero() && time.Since(lastHealthy) < r.healthCacheWindow {
			return ep, nil
		}
		if r.ping(ctx, ep) == nil {
			r.markHealthy(current)
			return ep, nil
		}
	}
	return r.switchToNext(ctx)
}

func (r *RPCManager) ping(ctx context.Context, ep *Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := ep.Client.BlockNumber(ctx)
	return err
}

func (r *RPCManager) markHealthy(i int) {
	r.mutex.Lock()
	r.lastHealthyAt[i] = time.Now()
	r.mutex.Unlock()
}

func (r *RPCManager) switchToNext(ctx context.Context) (*Endpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := 0; i < len(r.endpoints); i++ {
		next := (r.current + 1 + i) % len(r.endpoints)
		ep := r.endpoints[next]
		if ep == nil {
			continue
		}
		if err := r.ping(ctx, ep); err != nil {
			continue
		}
		r.current = next
		r.lastHealthyAt[next] = time.Now()
		r.log.Info().Str(logger.FieldURL, ep.URL).Msg("Switched RPC endpoint")
		return ep, nil
	}
	return nil, ErrNoHealthyRPC
}

func (r *RPCManager) GetCurrentURL() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if ep := r.endpoints[r.current]; ep != nil {
		return ep.URL
	}
	return ""
}

func (r *RPCManager) Network() string {
	return r.network
}

func (r *RPCManager) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, ep := range r.endpoints {
		if ep != nil {
			ep.Client.Close()
		}
	}
}
