// Package cmd is the fundlab command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VectorBits/fundlab/internal/config"
	"github.com/VectorBits/fundlab/internal/logger"
	"github.com/VectorBits/fundlab/internal/ui"
)

const Version = "v0.1.0"

// RootCommand owns the persistent flags shared by every subcommand.
type RootCommand struct {
	baseCmd  *cobra.Command
	cfgFile  string
	network  string
	logLevel string
	config   *config.AppConfig
}

// NewRootCommand builds the command tree. Settings are loaded lazily in
// PersistentPreRunE so --help works without a settings file.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{}
	rc.baseCmd = &cobra.Command{
		Use:   "fundlab",
		Short: "Deploy, verify and inspect the FundMe and FunWithStorage contracts",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rc.setup()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rc.baseCmd.PersistentFlags()
	flags.StringVarP(&rc.cfgFile, "config", "c", "", "Path to settings.yaml (default: config/settings.yaml, $FUNDLAB_CONFIG)")
	flags.StringVarP(&rc.network, "network", "n", "", "Network from settings.yaml (default: default_network)")
	flags.StringVarP(&rc.logLevel, "log-level", "l", "", "Log level: trace|debug|info|warn|error")

	rc.baseCmd.AddCommand(
		rc.newDeployCommand(),
		rc.newCompileCommand(),
		rc.newStorageCommand(),
		rc.newTraceCommand(),
		rc.newVerifyCommand(),
		rc.newAccountsCommand(),
		rc.newDeploymentsCommand(),
		newVersionCommand(),
	)
	return rc
}

func (rc *RootCommand) setup() error {
	cfg, err := rc.loadConfig()
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if rc.logLevel != "" {
		level = rc.logLevel
	}
	if err := logger.InitLogger(level, cfg.Log.Dir); err != nil {
		return err
	}
	rc.config = cfg
	return nil
}

func (rc *RootCommand) loadConfig() (*config.AppConfig, error) {
	if rc.cfgFile != "" {
		return config.LoadConfigFrom(rc.cfgFile)
	}
	if config.GetConfigPath() == "" {
		return config.Default(), nil
	}
	return config.LoadConfig()
}

// SetArgs overrides os.Args, for tests.
func (rc *RootCommand) SetArgs(args []string) {
	rc.baseCmd.SetArgs(args)
}

func (rc *RootCommand) ExecuteContext(ctx context.Context) error {
	defer logger.Close()
	return rc.baseCmd.ExecuteContext(ctx)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fundlab", Version)
		},
	}
}

// Print shows the banner.
func Print() {
	ui.PrintBanner(Version)
}

// Run executes the command line. The first interrupt cancels the running
// command; a second one exits immediately.
func Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()

	go func() {
		count := 0
		for range sigChan {
			count++
			if count == 1 {
				fmt.Fprintln(os.Stderr, "\nInterrupt received, stopping... (press Ctrl+C again to force exit)")
				cancel()
				continue
			}
			fmt.Fprintln(os.Stderr, "\nForce exiting...")
			os.Exit(130)
		}
	}()

	return NewRootCommand().ExecuteContext(ctx)
}

func PrintFatal(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	ui.LogError("%v", err)
	os.Exit(1)
}
