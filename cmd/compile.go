package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/VectorBits/fundlab/internal/ui"
)

func (rc *RootCommand) newCompileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Compile the embedded contracts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			build, err := rc.compile(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]ui.Row, 0, len(build.Artifacts))
			for _, name := range build.Names() {
				a := build.Artifacts[name]
				rows = append(rows, ui.Row{
					a.FullyQualifiedName(),
					strconv.Itoa(len(a.Bytecode)),
					strconv.Itoa(len(a.DeployedBytecode)),
				})
			}
			ui.PrintTable(ui.Row{"CONTRACT", "INIT BYTES", "RUNTIME BYTES"}, rows)
			ui.LogSuccess("Compiled %d contracts with solc %s", len(rows), build.CompilerVersion)
			return nil
		},
	}
}
