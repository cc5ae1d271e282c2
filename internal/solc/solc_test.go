package solc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VectorBits/fundlab/contracts"
)

func TestExtractPragmaVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src  string
		want string
	}{
		{"pragma solidity ^0.8.8;", "0.8.8"},
		{"pragma solidity >=0.6.0 <0.9.0;", "0.6.0"},
		{"pragma solidity >=0.6.0 <=0.8.8;", "0.8.8"},
		{"pragma solidity 0.7.6;\ncontract A {}", "0.7.6"},
		{"// SPDX\ncontract NoPragma {}", ""},
		{"pragma solidity ^0.8.8;\npragma solidity ^0.8.19;", "0.8.19"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ExtractPragmaVersion(c.src), c.src)
	}
}

func TestCompareAndNormalizeVersions(t *testing.T) {
	t.Parallel()

	require.Positive(t, compareVersions("0.8.10", "0.8.9"))
	require.Negative(t, compareVersions("0.7.6", "0.8.0"))
	require.Zero(t, compareVersions("0.8.8", "0.8.8"))

	require.Equal(t, "0.8.8", normalizeVersion(" ^0.8.8 "))
	require.Equal(t, "0.8.8", normalizeVersion(">=0.8.8"))
	require.Equal(t, "0.8.8", normalizeVersion("v0.8.8"))
}

func TestParseLongVersion(t *testing.T) {
	t.Parallel()

	out := "solc, the solidity compiler commandline interface\nVersion: 0.8.8+commit.dddeac2f.Linux.g++\n"
	v, err := parseLongVersion(out)
	require.NoError(t, err)
	require.Equal(t, "v0.8.8+commit.dddeac2f", v)

	_, err = parseLongVersion("garbage")
	require.Error(t, err)
}

func TestPickVersion(t *testing.T) {
	t.Parallel()

	sources, err := contracts.Sources()
	require.NoError(t, err)
	require.Equal(t, "0.8.8", PickVersion(sources))
}

const sampleOutput = `{
  "errors": [
    {"severity": "warning", "type": "Warning", "message": "unused", "formattedMessage": "Warning: unused"}
  ],
  "sources": {"contracts/Box.sol": {"id": 0}},
  "contracts": {
    "contracts/Box.sol": {
      "Box": {
        "abi": [
          {"inputs": [], "name": "value", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
        ],
        "metadata": "{}",
        "storageLayout": {
          "storage": [
            {"astId": 3, "contract": "contracts/Box.sol:Box", "label": "value", "offset": 0, "slot": "0", "type": "t_uint256"}
          ],
          "types": {
            "t_uint256": {"encoding": "inplace", "label": "uint256", "numberOfBytes": "32"}
          }
        },
        "evm": {
          "bytecode": {"object": "6080604052"},
          "deployedBytecode": {"object": "60806040"}
        }
      }
    }
  }
}`

func TestParseOutput(t *testing.T) {
	t.Parallel()

	input := NewStandardInput(map[string]string{"contracts/Box.sol": "contract Box {}"}, Options{})
	require.Equal(t, 200, input.Settings.Optimizer.Runs)

	build, err := ParseOutput(input, []byte(sampleOutput), "v0.8.8+commit.dddeac2f")
	require.NoError(t, err)
	require.Equal(t, []string{"Box"}, build.Names())
	require.Len(t, build.Warnings, 1)

	box, err := build.Artifact("Box")
	require.NoError(t, err)
	require.Equal(t, "contracts/Box.sol:Box", box.FullyQualifiedName())
	require.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, box.Bytecode)
	require.Contains(t, box.ABI.Methods, "value")
	require.NotNil(t, box.StorageLayout)
	require.Equal(t, "value", box.StorageLayout.Storage[0].Label)
	require.Equal(t, "32", box.StorageLayout.Types["t_uint256"].NumberOfBytes)

	_, err = build.Artifact("Missing")
	require.Error(t, err)
}

func TestParseOutputFailsOnErrors(t *testing.T) {
	t.Parallel()

	out := `{"errors":[{"severity":"error","type":"ParserError","message":"Expected ';'","formattedMessage":"ParserError: Expected ';'"}]}`
	_, err := ParseOutput(&StandardInput{}, []byte(out), "")
	require.ErrorContains(t, err, "ParserError")
}

func TestCompileEmbeddedContracts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping compiler download in short mode")
	}

	sources, err := contracts.Sources()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m := NewManager()
	if _, err := m.GetSolcPath(ctx, PickVersion(sources)); err != nil {
		t.Skipf("solc unavailable: %v", err)
	}

	build, err := m.Compile(ctx, sources, Options{})
	require.NoError(t, err)
	for _, name := range []string{contracts.FundMe, contracts.FunWithStorage, contracts.MockV3Aggregator} {
		a, err := build.Artifact(name)
		require.NoError(t, err)
		require.NotEmpty(t, a.Bytecode)
		require.NotNil(t, a.StorageLayout)
	}
}
