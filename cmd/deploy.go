package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/VectorBits/fundlab/internal/deployments"
	"github.com/VectorBits/fundlab/internal/scripts"
	"github.com/VectorBits/fundlab/internal/ui"
)

func (rc *RootCommand) newDeployCommand() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Run the deploy scripts matching --tags",
		Example: `  fundlab deploy
  fundlab deploy --tags fundme --network sepolia`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			s, err := rc.openSession(cmd.Context(), sessionOptions{
				compile: true,
				scripts: scripts.OptionsFromConfig(rc.config),
			})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.env.RunScripts(cmd.Context(), tags...); err != nil {
				return err
			}
			printDeployments(s.env.Deployments())
			ui.PrintStats("Deployment finished", time.Since(start),
				fmt.Sprintf("network: %s", s.network.Name),
				fmt.Sprintf("contracts: %d", len(s.env.Deployments())))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", []string{scripts.TagAll}, "Deploy script tags: all|mocks|fundme|storage")
	return cmd
}

func printDeployments(ds []*deployments.Deployment) {
	if len(ds) == 0 {
		ui.LogInfo("Nothing deployed")
		return
	}
	rows := make([]ui.Row, 0, len(ds))
	for _, d := range ds {
		gas := "-"
		if d.Receipt != nil {
			gas = strconv.FormatUint(d.Receipt.GasUsed, 10)
		}
		status := "deployed"
		if !d.Newly {
			status = "reused"
		}
		rows = append(rows, ui.Row{d.Name, d.Address.Hex(), d.TxHash.Hex(), gas, status})
	}
	ui.PrintTable(ui.Row{"NAME", "ADDRESS", "TX", "GAS", "STATUS"}, rows)
}
