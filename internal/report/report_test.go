package report

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/VectorBits/fundlab/internal/storage"
)

func sampleReport() *StorageReport {
	r := NewStorageReport("FunWithStorage", common.HexToAddress("0x01"), "hardhat", common.HexToHash("0xabc"))
	r.AddCall(GetterCall{
		Index:  0,
		Array:  []*big.Int{big.NewInt(222)},
		Mapped: true,
		Slot:   storage.Slot{Key: storage.SlotKey(0), Value: common.BigToHash(big.NewInt(25))},
	})
	r.Layout = []storage.Slot{{Key: storage.SlotKey(0), Value: common.BigToHash(big.NewInt(25)), Label: "favoriteNumber", Type: "uint256"}}
	r.Writes = []storage.StorageWrite{{PC: 12, Depth: 1, Slot: storage.SlotKey(0), Value: common.BigToHash(big.NewInt(25))}}
	r.AddDerived("myArray[0]", storage.ArraySlot(storage.SlotKey(2)), common.BigToHash(big.NewInt(222)))
	return r
}

func TestMarkdownGenerator(t *testing.T) {
	t.Parallel()

	out, err := NewMarkdownGenerator().Generate(sampleReport())
	require.NoError(t, err)
	require.Contains(t, out, "# Storage Report: FunWithStorage")
	require.Contains(t, out, "| 0 | [222] | true |")
	require.Contains(t, out, "| favoriteNumber | uint256 | `0` | 25 |")
	require.Contains(t, out, "| 12 | 1 | `0` | 25 |")
	require.Contains(t, out, "**myArray[0]** at `0x405787fa12a823e0f2b7631cc41b3ba8828b3321ca811111fa75cd3aa3bb5ace`")

	r := sampleReport()
	r.TraceSource = "local replay of the creation code"
	out, err = NewMarkdownGenerator().Generate(r)
	require.NoError(t, err)
	require.Contains(t, out, "_Source: local replay of the creation code_")

	r = sampleReport()
	r.Writes = nil
	r.TraceError = "node does not support debug_traceTransaction"
	out, err = NewMarkdownGenerator().Generate(r)
	require.NoError(t, err)
	require.Contains(t, out, "_Trace unavailable: node does not support debug_traceTransaction_")

	_, err = NewMarkdownGenerator().Generate(nil)
	require.Error(t, err)
}

func TestDerive(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	d, ok := r.Derive("myArray[0]")
	require.True(t, ok)
	require.EqualValues(t, 222, storage.Word(d.Value.Bytes()).Uint64())
	_, ok = r.Derive("missing")
	require.False(t, ok)
}

func TestReporterSavesAtomically(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "reports")
	reporter := NewReporter(NewMarkdownGenerator(), dir)
	path, err := reporter.GenerateAndSave(sampleReport())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "storage_hardhat_FunWithStorage_00000000.md"), path)

	again := sampleReport()
	again.Network = "hardhat"
	again.Contract = "FunWithStorage v2"
	_, err = reporter.GenerateAndSave(again)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "FunWithStorage")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{
		"storage_hardhat_FunWithStorage_00000000.md",
		"storage_hardhat_FunWithStorage_v2_00000000.md",
	}, names)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	r := NewStorageReport("FunWithStorage", common.Address{}, "sepolia", common.HexToHash("0xdeadbeef00000000000000000000000000000000000000000000000000000000"))
	require.Equal(t, "storage_sepolia_FunWithStorage_deadbeef.md", r.FileName())

	r = &StorageReport{Network: " ../x ", Contract: "...", GeneratedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)}
	require.Equal(t, "storage_x_unknown_20240501T123000.md", r.FileName())

	require.Equal(t, "a_b", fileSafe("a/b"))
}
