package cmd

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/VectorBits/fundlab/internal/chain"
	"github.com/VectorBits/fundlab/internal/storage"
	"github.com/VectorBits/fundlab/internal/ui"
)

func (rc *RootCommand) newTraceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <tx hash>",
		Short: "List the SSTOREs a transaction executed (needs debug_traceTransaction)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil || len(raw) != common.HashLength {
				return fmt.Errorf("invalid transaction hash %q", args[0])
			}
			hash := common.BytesToHash(raw)

			network, err := chain.Connect(cmd.Context(), rc.config, rc.network)
			if err != nil {
				return err
			}
			defer network.Close()

			result, err := storage.TraceTransaction(cmd.Context(), network.RPC, hash)
			if err != nil {
				return err
			}
			writes, err := storage.StorageWrites(result)
			if err != nil {
				return err
			}
			rows := make([]ui.Row, 0, len(writes))
			for _, w := range writes {
				rows = append(rows, ui.Row{strconv.FormatUint(w.PC, 10), strconv.Itoa(w.Depth), w.Slot.Hex(), w.Value.Hex()})
			}
			ui.PrintTable(ui.Row{"PC", "DEPTH", "SLOT", "VALUE"}, rows)
			ui.LogInfo("%d SSTOREs, %d gas, failed: %t", len(writes), result.Gas, result.Failed)
			return nil
		},
	}
}
