package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/VectorBits/fundlab/internal/deployments"
	"github.com/VectorBits/fundlab/internal/logger"
	"github.com/VectorBits/fundlab/internal/solc"
)

// Verify publishes the source of d. A contract the explorer already knows
// counts as verified.
func (c *Client) Verify(ctx context.Context, d *deployments.Deployment, build *solc.Build) error {
	address := d.Address.Hex()
	log := c.log.With().Str(logger.FieldContract, d.Name).Str(logger.FieldAddress, address).Logger()
	log.Info().Msg("Verifying contract...")

	if _, verified, err := c.GetSourceCode(ctx, address); err != nil {
		log.Warn().Err(err).Msg("Could not check existing verification")
	} else if verified {
		log.Info().Msg("Already verified!")
		return nil
	}

	submission, err := NewSubmission(d, build)
	if err != nil {
		return err
	}
	guid, err := c.Submit(ctx, *submission)
	if errors.Is(err, ErrAlreadyVerified) {
		log.Info().Msg("Already verified!")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	log.Info().Str("guid", guid).Msg("Submitted source for verification")
	if err := c.WaitVerified(ctx, guid); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	return nil
}

// NewSubmission builds the verifysourcecode payload for a deployment.
func NewSubmission(d *deployments.Deployment, build *solc.Build) (*Submission, error) {
	if build == nil || build.Input == nil {
		return nil, errors.New("compiler input is required for verification")
	}
	artifact, err := build.Artifact(d.Contract)
	if err != nil {
		return nil, err
	}
	input, err := json.Marshal(build.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode compiler input: %w", err)
	}
	args := ""
	if len(d.EncodedArgs) > 0 {
		args = hexutil.Encode(d.EncodedArgs)[2:]
	}
	return &Submission{
		Address:         d.Address.Hex(),
		ContractName:    artifact.FullyQualifiedName(),
		CompilerVersion: build.CompilerVersion,
		SourceCode:      string(input),
		ConstructorArgs: args,
	}, nil
}
