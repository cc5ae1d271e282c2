// Package verify submits contract sources to Etherscan-compatible explorers.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/VectorBits/fundlab/internal"
	"github.com/VectorBits/fundlab/internal/config"
	"github.com/VectorBits/fundlab/internal/logger"
)

var (
	ErrNoAPIKey        = errors.New("explorer API key not configured")
	ErrAlreadyVerified = errors.New("contract source code already verified")
)

const (
	statusPending  = "Pending in queue"
	defaultTimeout = 30 * time.Second
	maxAttempts    = 3
)

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// resultString returns Result when it is a JSON string.
func (r *response) resultString() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err != nil {
		return strings.TrimSpace(string(r.Result))
	}
	return s
}

type SourceInfo struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	OptimizationUsed     string `json:"OptimizationUsed"`
	Runs                 string `json:"Runs"`
	ConstructorArguments string `json:"ConstructorArguments"`
	EVMVersion           string `json:"EVMVersion"`
	LicenseType          string `json:"LicenseType"`
	Proxy                string `json:"Proxy"`
	Implementation       string `json:"Implementation"`
}

// Client talks to one explorer for one chain.
type Client struct {
	baseURL      string
	chainID      uint64
	keys         *config.APIKeyManager
	http         *http.Client
	limiter      *RateLimiter
	pollInterval time.Duration
	maxPolls     int
	log          zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithPollInterval(d time.Duration, maxPolls int) Option {
	return func(cl *Client) {
		cl.pollInterval = d
		if maxPolls > 0 {
			cl.maxPolls = maxPolls
		}
	}
}

// WithRateLimit caps requests per second; 0 disables limiting.
func WithRateLimit(perSecond int) Option {
	return func(cl *Client) {
		if cl.limiter != nil {
			cl.limiter.Stop()
			cl.limiter = nil
		}
		if perSecond > 0 {
			cl.limiter = NewRateLimiter(perSecond)
		}
	}
}

func NewClient(explorer config.Explorer, chainID uint64, proxy string, opts ...Option) (*Client, error) {
	keys := config.NewAPIKeyManager(explorer)
	if !keys.HasKeys() {
		return nil, ErrNoAPIKey
	}
	baseURL := strings.TrimSpace(explorer.BaseURL)
	if baseURL == "" {
		baseURL = config.DefaultExplorerAPIURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("failed to parse explorer base url: %w", err)
	}
	httpClient, err := internal.CreateProxyHTTPClient(proxy, defaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create explorer HTTP client: %w", err)
	}

	c := &Client{
		baseURL:      baseURL,
		chainID:      chainID,
		keys:         keys,
		http:         httpClient,
		limiter:      NewRateLimiter(5),
		pollInterval: 5 * time.Second,
		maxPolls:     24,
		log:          logger.New("verify").With().Uint64("chainId", chainID).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
}

// endpoint carries chainid in the query string for both GET and POST; the
// v2 API rejects it in a form body.
func (c *Client) endpoint(q url.Values) string {
	u, _ := url.Parse(c.baseURL)
	query := u.Query()
	for k, v := range q {
		query[k] = v
	}
	if c.chainID > 0 {
		query.Set("chainid", strconv.FormatUint(c.chainID, 10))
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends one API call. params travel in the query for GET and in the form
// body for POST. Rate-limit answers rotate to the next key and retry.
func (c *Client) do(ctx context.Context, method string, params url.Values) (*response, error) {
	var lastErr error
	key := c.keys.GetKey()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		p := url.Values{}
		for k, v := range params {
			p[k] = v
		}
		p.Set("apikey", key)

		var req *http.Request
		var err error
		if method == http.MethodPost {
			req, err = http.NewRequestWithContext(ctx, method, c.endpoint(nil), strings.NewReader(p.Encode()))
			if err == nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		} else {
			req, err = http.NewRequestWithContext(ctx, method, c.endpoint(p), nil)
		}
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "fundlab/1.0")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if isTemporaryNetErr(err) && attempt < maxAttempts {
				if err := sleep(ctx, time.Duration(attempt)*500*time.Millisecond); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("failed to request explorer API: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				continue
			}
			return nil, fmt.Errorf("failed to read explorer response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			snippet := string(body)
			if len(snippet) > 1024 {
				snippet = snippet[:1024]
			}
			return nil, fmt.Errorf("explorer returned non-200 status: %d, body: %s", resp.StatusCode, snippet)
		}

		var r response
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("failed to parse explorer JSON: %w", err)
		}
		if r.Status != "1" && isRateLimited(r.resultString()) && attempt < maxAttempts {
			lastErr = errors.New(r.resultString())
			key = c.keys.GetNextKey()
			c.log.Debug().Int("attempt", attempt).Msg("Rate limited, rotating API key")
			if err := sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
				return nil, err
			}
			continue
		}
		return &r, nil
	}
	return nil, fmt.Errorf("explorer request failed after %d attempts: %w", maxAttempts, lastErr)
}

// GetSourceCode reports whether address has verified source on the explorer.
func (c *Client) GetSourceCode(ctx context.Context, address string) (*SourceInfo, bool, error) {
	r, err := c.do(ctx, http.MethodGet, url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
	})
	if err != nil {
		return nil, false, err
	}
	if r.Status != "1" {
		return nil, false, fmt.Errorf("explorer API error: %s: %s", r.Message, r.resultString())
	}
	var infos []SourceInfo
	if err := json.Unmarshal(r.Result, &infos); err != nil {
		return nil, false, fmt.Errorf("unexpected getsourcecode result: %w", err)
	}
	if len(infos) == 0 || strings.TrimSpace(infos[0].SourceCode) == "" {
		return nil, false, nil
	}
	return &infos[0], true, nil
}

// Submission is one verifysourcecode request.
type Submission struct {
	Address string
	// ContractName is fully qualified: "contracts/FundMe.sol:FundMe".
	ContractName string
	// CompilerVersion is the long form, e.g. "v0.8.8+commit.dddeac2f".
	CompilerVersion string
	// SourceCode is the standard-json input document.
	SourceCode string
	// ConstructorArgs is hex without 0x.
	ConstructorArgs string
}

// Submit returns the verification guid, or ErrAlreadyVerified.
func (c *Client) Submit(ctx context.Context, s Submission) (string, error) {
	r, err := c.do(ctx, http.MethodPost, url.Values{
		"module":                {"contract"},
		"action":                {"verifysourcecode"},
		"contractaddress":       {s.Address},
		"sourceCode":            {s.SourceCode},
		"codeformat":            {"solidity-standard-json-input"},
		"contractname":          {s.ContractName},
		"compilerversion":       {s.CompilerVersion},
		"constructorArguements": {s.ConstructorArgs},
	})
	if err != nil {
		return "", err
	}
	result := r.resultString()
	if r.Status != "1" {
		if isAlreadyVerified(result) {
			return "", ErrAlreadyVerified
		}
		return "", fmt.Errorf("verification submit failed: %s: %s", r.Message, result)
	}
	return result, nil
}

// CheckStatus returns the explorer's status line for guid and whether the
// verification is still pending.
func (c *Client) CheckStatus(ctx context.Context, guid string) (string, bool, error) {
	r, err := c.do(ctx, http.MethodGet, url.Values{
		"module": {"contract"},
		"action": {"checkverifystatus"},
		"guid":   {guid},
	})
	if err != nil {
		return "", false, err
	}
	result := r.resultString()
	if strings.EqualFold(result, statusPending) {
		return result, true, nil
	}
	if r.Status == "1" || isAlreadyVerified(result) {
		return result, false, nil
	}
	return result, false, fmt.Errorf("verification failed: %s", result)
}

// WaitVerified polls guid until the explorer leaves the pending state.
func (c *Client) WaitVerified(ctx context.Context, guid string) error {
	for i := 0; i < c.maxPolls; i++ {
		status, pending, err := c.CheckStatus(ctx, guid)
		if err != nil {
			return err
		}
		if !pending {
			c.log.Info().Str("guid", guid).Msg(status)
			return nil
		}
		c.log.Debug().Str("guid", guid).Msg(status)
		if err := sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("verification %s still pending after %d checks", guid, c.maxPolls)
}

func isAlreadyVerified(s string) bool {
	return strings.Contains(strings.ToLower(s), "already verified")
}

func isRateLimited(s string) bool {
	return strings.Contains(strings.ToLower(s), "rate limit")
}

func isTemporaryNetErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
