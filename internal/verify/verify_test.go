package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/VectorBits/fundlab/internal/config"
	"github.com/VectorBits/fundlab/internal/deployments"
	"github.com/VectorBits/fundlab/internal/solc"
)

type explorerStub struct {
	mu          sync.Mutex
	verified    bool
	submitted   map[string]string
	statusCalls int
	pendingFor  int
	submitReply map[string]any
	keysSeen    []string
}

func (s *explorerStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "11155111", r.URL.Query().Get("chainid"))
		require.Equal(t, "contract", r.Form.Get("module"))

		s.mu.Lock()
		defer s.mu.Unlock()
		s.keysSeen = append(s.keysSeen, r.Form.Get("apikey"))

		var reply map[string]any
		switch r.Form.Get("action") {
		case "getsourcecode":
			source := ""
			if s.verified {
				source = "contract FundMe {}"
			}
			reply = map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{"SourceCode": source}}}
		case "verifysourcecode":
			require.Equal(t, http.MethodPost, r.Method)
			s.submitted = map[string]string{}
			for k := range r.PostForm {
				s.submitted[k] = r.PostForm.Get(k)
			}
			reply = s.submitReply
			if reply == nil {
				reply = map[string]any{"status": "1", "message": "OK", "result": "guid-123"}
			}
		case "checkverifystatus":
			require.Equal(t, "guid-123", r.Form.Get("guid"))
			s.statusCalls++
			if s.statusCalls <= s.pendingFor {
				reply = map[string]any{"status": "0", "message": "NOTOK", "result": "Pending in queue"}
			} else {
				s.verified = true
				reply = map[string]any{"status": "1", "message": "OK", "result": "Pass - Verified"}
			}
		default:
			t.Errorf("unexpected action %q", r.Form.Get("action"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}
}

func newStubClient(t *testing.T, stub *explorerStub, explorer config.Explorer) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	explorer.BaseURL = srv.URL + "/v2/api"
	c, err := NewClient(explorer, 11155111, "", WithPollInterval(time.Millisecond, 10), WithRateLimit(0))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func testDeployment() (*deployments.Deployment, *solc.Build) {
	input := solc.NewStandardInput(map[string]string{"contracts/FundMe.sol": "contract FundMe {}"}, solc.Options{})
	build := &solc.Build{
		Input:           input,
		CompilerVersion: "v0.8.8+commit.dddeac2f",
		Artifacts: map[string]*solc.Artifact{
			"FundMe": {ContractName: "FundMe", SourceName: "contracts/FundMe.sol"},
		},
	}
	d := &deployments.Deployment{
		Name:        "FundMe",
		Contract:    "FundMe",
		Address:     common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		EncodedArgs: common.LeftPadBytes([]byte{0xaa}, 32),
	}
	return d, build
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(config.Explorer{}, 1, "")
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestVerifySubmitsAndPolls(t *testing.T) {
	t.Parallel()

	stub := &explorerStub{pendingFor: 2}
	c := newStubClient(t, stub, config.Explorer{APIKey: "key-1"})
	d, build := testDeployment()

	require.NoError(t, c.Verify(context.Background(), d, build))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Equal(t, 3, stub.statusCalls)
	require.Equal(t, "contracts/FundMe.sol:FundMe", stub.submitted["contractname"])
	require.Equal(t, "v0.8.8+commit.dddeac2f", stub.submitted["compilerversion"])
	require.Equal(t, "solidity-standard-json-input", stub.submitted["codeformat"])
	require.Equal(t, d.Address.Hex(), stub.submitted["contractaddress"])
	require.Equal(t, "00000000000000000000000000000000000000000000000000000000000000aa", stub.submitted["constructorArguements"])
	require.Contains(t, stub.submitted["sourceCode"], `"language":"Solidity"`)
	require.Equal(t, "key-1", stub.submitted["apikey"])
}

func TestVerifySkipsVerifiedContract(t *testing.T) {
	t.Parallel()

	stub := &explorerStub{verified: true}
	c := newStubClient(t, stub, config.Explorer{APIKey: "key-1"})
	d, build := testDeployment()

	require.NoError(t, c.Verify(context.Background(), d, build))
	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Nil(t, stub.submitted)
}

func TestVerifyTreatsAlreadyVerifiedAsSuccess(t *testing.T) {
	t.Parallel()

	stub := &explorerStub{submitReply: map[string]any{"status": "0", "message": "NOTOK", "result": "Contract source code already verified"}}
	c := newStubClient(t, stub, config.Explorer{APIKey: "key-1"})
	d, build := testDeployment()

	require.NoError(t, c.Verify(context.Background(), d, build))
	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Zero(t, stub.statusCalls)
}

func TestSubmitFailure(t *testing.T) {
	t.Parallel()

	stub := &explorerStub{submitReply: map[string]any{"status": "0", "message": "NOTOK", "result": "Invalid constructor arguments"}}
	c := newStubClient(t, stub, config.Explorer{APIKey: "key-1"})
	d, build := testDeployment()

	err := c.Verify(context.Background(), d, build)
	require.ErrorContains(t, err, "Invalid constructor arguments")
}

func TestRateLimitRotatesKeys(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		n := calls.Add(1)
		reply := map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{"SourceCode": ""}}}
		if n == 1 {
			require.Equal(t, "key-a", r.Form.Get("apikey"))
			reply = map[string]any{"status": "0", "message": "NOTOK", "result": "Max rate limit reached"}
		} else {
			require.Equal(t, "key-b", r.Form.Get("apikey"))
		}
		json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()

	c, err := NewClient(config.Explorer{APIKeys: []string{"key-a", "key-b"}, BaseURL: srv.URL}, 1, "", WithRateLimit(0))
	require.NoError(t, err)

	_, verified, err := c.GetSourceCode(context.Background(), "0x01")
	require.NoError(t, err)
	require.False(t, verified)
	require.EqualValues(t, 2, calls.Load())
}

func TestRateLimitBackoffHonorsContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"status": "0", "message": "NOTOK", "result": "Max rate limit reached"})
	}))
	defer srv.Close()

	c, err := NewClient(config.Explorer{APIKeys: []string{"key-a", "key-b"}, BaseURL: srv.URL}, 1, "", WithRateLimit(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, _, err = c.GetSourceCode(ctx, "0x01")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
	require.EqualValues(t, 1, calls.Load())
}

func TestNewSubmissionNeedsInput(t *testing.T) {
	t.Parallel()

	d, _ := testDeployment()
	_, err := NewSubmission(d, &solc.Build{})
	require.Error(t, err)
}
