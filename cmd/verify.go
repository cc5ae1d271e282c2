package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/VectorBits/fundlab/internal/deployments"
	"github.com/VectorBits/fundlab/internal/scripts"
	"github.com/VectorBits/fundlab/internal/ui"
)

func (rc *RootCommand) newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <deployment name>",
		Short: "Verify a recorded deployment on the network's block explorer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.openSession(ctx, sessionOptions{compile: true, scripts: scripts.OptionsFromConfig(rc.config)})
			if err != nil {
				return err
			}
			defer s.Close()

			if s.network.Dev {
				return fmt.Errorf("%s is a development chain, nothing to verify", s.network.Name)
			}
			if s.env.Verifier == nil {
				return errors.New("no explorer API key configured (set explorer.api_key or ETHERSCAN_API_KEY)")
			}
			rec, err := s.ledger.Find(ctx, s.network.Name, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no deployment of %s recorded on %s", args[0], s.network.Name)
			}
			encoded, err := hex.DecodeString(rec.EncodedArgs)
			if err != nil {
				return fmt.Errorf("invalid constructor arguments in ledger: %w", err)
			}
			contract := rec.Contract
			if contract == "" {
				contract = rec.Name
			}
			d := &deployments.Deployment{
				Name:        rec.Name,
				Contract:    contract,
				Address:     common.HexToAddress(rec.Address),
				TxHash:      common.HexToHash(rec.TxHash),
				EncodedArgs: encoded,
				Deployer:    common.HexToAddress(rec.Deployer),
			}
			if _, err := s.env.Verify(ctx, d); err != nil {
				return err
			}
			ui.LogSuccess("%s at %s is verified", d.Name, d.Address.Hex())
			return nil
		},
	}
}
