package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutputWithoutColors(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	LogInfo("deployed %s", "FundMe")
	LogWarn("skipping %d", 1)
	PrintTable(Row{"name", "address"}, []Row{{"deployer", "0x01"}, {"user", "0x0002"}})
	PrintStats("Deployment finished", 1500*time.Millisecond, "contracts: 2")

	out := buf.String()
	require.NotContains(t, out, "\033[")
	require.Contains(t, out, "[INFO] deployed FundMe\n")
	require.Contains(t, out, "[WARN] skipping 1\n")
	require.Contains(t, out, "name      address\n")
	require.Contains(t, out, "deployer  0x01\n")
	require.Contains(t, out, "Deployment finished in 1.5s")

	stop := StartSpinner("compiling")
	close(stop)
	require.False(t, strings.Contains(buf.String(), "compiling"))
}
