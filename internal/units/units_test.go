package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	t.Parallel()

	wei, err := ParseEther("1")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", wei.String())

	wei, err = ParseEther("0.05")
	require.NoError(t, err)
	require.Equal(t, "50000000000000000", wei.String())

	_, err = ParseEther("0.0000000000000000001")
	require.Error(t, err)

	_, err = ParseEther("one")
	require.Error(t, err)
}

func TestFormatEther(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1", FormatEther(MustParseEther("1")))
	require.Equal(t, "0.05", FormatEther(big.NewInt(50000000000000000)))
	require.Equal(t, "0", FormatEther(nil))
	require.Equal(t, "2000", FormatUnits(big.NewInt(200000000000), 8))
}
