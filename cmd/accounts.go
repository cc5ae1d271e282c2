package cmd

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/VectorBits/fundlab/internal/chain"
	"github.com/VectorBits/fundlab/internal/dbutil"
	"github.com/VectorBits/fundlab/internal/ui"
	"github.com/VectorBits/fundlab/internal/units"
)

func (rc *RootCommand) newAccountsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Show the named accounts and their balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			network, err := chain.Connect(ctx, rc.config, rc.network)
			if err != nil {
				return err
			}
			defer network.Close()

			names := make([]string, 0, len(rc.config.NamedAccounts))
			for name := range rc.config.NamedAccounts {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				return rc.config.NamedAccounts[names[i]] < rc.config.NamedAccounts[names[j]]
			})

			rows := make([]ui.Row, 0, len(names))
			for _, name := range names {
				idx := rc.config.NamedAccounts[name]
				acct, err := network.Account(idx)
				if err != nil {
					ui.LogWarn("%s: %v", name, err)
					continue
				}
				balance, err := network.Backend.BalanceAt(ctx, acct.Address, nil)
				if err != nil {
					return err
				}
				rows = append(rows, ui.Row{name, strconv.Itoa(idx), acct.Address.Hex(), units.FormatEther(balance) + " ETH"})
			}
			ui.PrintTable(ui.Row{"NAME", "INDEX", "ADDRESS", "BALANCE"}, rows)
			return nil
		},
	}
}

func (rc *RootCommand) newDeploymentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deployments",
		Short: "List deployments recorded in the ledger for a network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			nc, err := rc.config.GetNetworkConfig(rc.network)
			if err != nil {
				return err
			}
			ledger, err := dbutil.Open(rc.config.Database)
			if err != nil {
				return err
			}
			defer ledger.Close()

			records, err := ledger.List(cmd.Context(), nc.Name)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				ui.LogInfo("No deployments recorded on %s", nc.Name)
				return nil
			}
			rows := make([]ui.Row, 0, len(records))
			for _, r := range records {
				rows = append(rows, ui.Row{
					r.Name, r.Address, strconv.FormatUint(r.BlockNumber, 10),
					strconv.FormatBool(r.Verified), r.UpdatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			ui.PrintTable(ui.Row{"NAME", "ADDRESS", "BLOCK", "VERIFIED", "UPDATED"}, rows)
			return nil
		},
	}
}
