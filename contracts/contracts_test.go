package contracts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSources(t *testing.T) {
	t.Parallel()

	sources, err := Sources()
	require.NoError(t, err)

	for _, name := range []string{
		"contracts/FundMe.sol",
		"contracts/PriceConverter.sol",
		"contracts/AggregatorV3Interface.sol",
		"contracts/FunWithStorage.sol",
		"contracts/test/MockV3Aggregator.sol",
	} {
		require.Contains(t, sources, name)
		require.Contains(t, sources[name], "pragma solidity")
	}
}
