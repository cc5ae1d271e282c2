package dbutil

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VectorBits/fundlab/internal/config"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ledger", "fundlab.db")})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerSaveFindUpsert(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	rec, err := l.Find(ctx, "sepolia", "FundMe")
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, l.Save(ctx, &DeploymentRecord{
		Network: "sepolia", Name: "FundMe", Address: "0x01", BytecodeHash: "0xaa", Args: "[]",
	}))
	require.NoError(t, l.Save(ctx, &DeploymentRecord{
		Network: "sepolia", Name: "FundMe", Address: "0x02", BytecodeHash: "0xbb", Args: "[]",
	}))
	require.NoError(t, l.Save(ctx, &DeploymentRecord{
		Network: "mainnet", Name: "FundMe", Address: "0x03",
	}))

	rec, err = l.Find(ctx, "sepolia", "FundMe")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "0x02", rec.Address)
	require.Equal(t, "0xbb", rec.BytecodeHash)
	require.False(t, rec.Verified)

	require.NoError(t, l.MarkVerified(ctx, "sepolia", "FundMe"))
	rec, err = l.Find(ctx, "sepolia", "FundMe")
	require.NoError(t, err)
	require.True(t, rec.Verified)

	all, err := l.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	onlySepolia, err := l.List(ctx, "sepolia")
	require.NoError(t, err)
	require.Len(t, onlySepolia, 1)
}

func TestNilLedgerIsNoop(t *testing.T) {
	ctx := context.Background()

	l, err := Open(config.DatabaseConfig{Driver: "none"})
	require.NoError(t, err)
	require.Nil(t, l)

	require.NoError(t, l.Save(ctx, &DeploymentRecord{Network: "x", Name: "y"}))
	rec, err := l.Find(ctx, "x", "y")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.NoError(t, l.MarkVerified(ctx, "x", "y"))
	require.NoError(t, l.Close())

	_, err = Open(config.DatabaseConfig{Driver: "mysql"})
	require.ErrorContains(t, err, "dsn is empty")
}

func TestOpenMySQL(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql", DSN: "fundlab@tcp(127.0.0.1:3306"})
	require.ErrorContains(t, err, "invalid mysql dsn")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	_, err = Open(config.DatabaseConfig{Driver: "mysql", DSN: "fundlab@tcp(" + addr + ")/fundlab?timeout=500ms"})
	require.ErrorContains(t, err, "failed to connect to MySQL")

	dsn := os.Getenv("FUNDLAB_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("FUNDLAB_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	l, err := Open(config.DatabaseConfig{Driver: "mysql", DSN: dsn})
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.Save(ctx, &DeploymentRecord{Network: "sepolia", Name: "FundMe", Address: "0x01"}))
	rec, err := l.Find(ctx, "sepolia", "FundMe")
	require.NoError(t, err)
	require.Equal(t, "0x01", rec.Address)
}
