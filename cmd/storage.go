package cmd

import (
	"github.com/spf13/cobra"

	"github.com/VectorBits/fundlab/internal/report"
	"github.com/VectorBits/fundlab/internal/scripts"
	"github.com/VectorBits/fundlab/internal/ui"
)

func (rc *RootCommand) newStorageCommand() *cobra.Command {
	var (
		outDir string
		slots  uint64
	)
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Deploy FunWithStorage and report where its state lives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rep *report.StorageReport
			opts := scripts.OptionsFromConfig(rc.config)
			opts.StorageSlots = slots
			opts.OnStorageReport = func(r *report.StorageReport) { rep = r }

			s, err := rc.openSession(cmd.Context(), sessionOptions{compile: true, scripts: opts})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.env.RunScripts(cmd.Context(), scripts.TagStorage); err != nil {
				return err
			}
			if rep == nil {
				return nil
			}

			reporter := report.NewReporter(report.NewMarkdownGenerator(), outDir)
			path, err := reporter.GenerateAndSave(rep)
			if err != nil {
				return err
			}
			ui.LogSuccess("Storage report saved to %s", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "reports", "Directory for the markdown report")
	cmd.Flags().Uint64Var(&slots, "slots", 10, "Number of leading storage slots to read")
	return cmd
}
