package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateProxyURL(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateProxyURL(""))
	require.NoError(t, ValidateProxyURL("http://127.0.0.1:7897"))
	require.NoError(t, ValidateProxyURL("socks5://localhost:1080"))
	require.Error(t, ValidateProxyURL("ftp://localhost:21"))
	require.Error(t, ValidateProxyURL("http://"))
}

func TestCreateProxyHTTPClientIsCached(t *testing.T) {
	t.Parallel()

	a, err := CreateProxyHTTPClient("", 3*time.Second)
	require.NoError(t, err)
	b, err := CreateProxyHTTPClient("", 3*time.Second)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Nil(t, a.Transport)

	p, err := CreateProxyHTTPClient("http://127.0.0.1:7897", 3*time.Second)
	require.NoError(t, err)
	require.NotSame(t, a, p)
	require.NotNil(t, p.Transport)

	_, err = CreateProxyHTTPClient("ftp://x", time.Second)
	require.Error(t, err)
}
