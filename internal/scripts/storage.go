package scripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/VectorBits/fundlab/contracts"
	"github.com/VectorBits/fundlab/internal/deployments"
	"github.com/VectorBits/fundlab/internal/logger"
	"github.com/VectorBits/fundlab/internal/report"
	"github.com/VectorBits/fundlab/internal/storage"
)

const (
	arraySlot   = 2
	mappingSlot = 3
)

func DeployStorage(opts Options) deployments.Script {
	return deployments.Script{
		Name: "99-deploy-storage-fun",
		Tags: []string{TagStorage},
		Run: func(ctx context.Context, env *deployments.Env) error {
			rep, err := DeployStorageFun(ctx, env, opts.StorageSlots)
			if err != nil {
				return err
			}
			if opts.OnStorageReport != nil {
				opts.OnStorageReport(rep)
			}
			return nil
		},
	}
}

// DeployStorageFun deploys FunWithStorage and inspects where its state ended
// up: the first slots, the SSTOREs of the constructor, and the derived
// locations of the first array element and of myMap[0].
func DeployStorageFun(ctx context.Context, env *deployments.Env, slots uint64) (*report.StorageReport, error) {
	if slots == 0 {
		slots = DefaultOptions().StorageSlots
	}
	log := env.Logger()

	deployer, err := env.NamedAccount("deployer")
	if err != nil {
		return nil, err
	}
	log.Info().Msg("----------------------------------------------------")
	log.Info().Msgf("Deploying FunWithStorage and waiting for confirmations... (deployer %s)", deployer.Address.Hex())
	d, err := env.Deploy(ctx, contracts.FunWithStorage, deployments.DeployOptions{
		Log:               true,
		WaitConfirmations: confirmations(env),
	})
	if err != nil {
		return nil, err
	}
	funWithStorage, err := env.GetContract(contracts.FunWithStorage, deployer)
	if err != nil {
		return nil, err
	}
	if _, err := env.Verify(ctx, d); err != nil {
		return nil, err
	}

	rep := report.NewStorageReport(d.Name, d.Address, env.Network.Name, d.TxHash)
	inspector := storage.NewInspector(env.Network.Backend, d.Address)

	log.Info().Msg("Logging storage...")
	walked, err := inspector.Walk(ctx, 0, slots)
	if err != nil {
		return nil, err
	}
	for i, slot := range walked {
		out, err := funWithStorage.Call(ctx, "getBoth", big.NewInt(0))
		if err != nil {
			return nil, err
		}
		array, ok := out[0].([]*big.Int)
		if !ok {
			return nil, fmt.Errorf("getBoth: unexpected array type %T", out[0])
		}
		mapped, ok := out[1].(bool)
		if !ok {
			return nil, fmt.Errorf("getBoth: unexpected mapping type %T", out[1])
		}
		log.Info().Msgf("getBoth(0): [%s] %t", joinInts(array), mapped)
		log.Info().Str(logger.FieldSlot, slot.Key.Hex()).Msgf("Location %d: %s", i, slot.Value.Hex())
		rep.AddCall(report.GetterCall{Index: uint64(i), Array: array, Mapped: mapped, Slot: slot})
	}

	writes, source, err := constructorWrites(ctx, env, d)
	if err != nil {
		log.Warn().Err(err).Msg("Could not trace the deployment, skipping SSTORE writes")
		rep.TraceError = err.Error()
	} else {
		for _, w := range writes {
			log.Info().Uint64("pc", w.PC).Msgf("SSTORE %s <- %s", w.Slot.Hex(), w.Value.Hex())
		}
		rep.Writes = writes
		rep.TraceSource = source
	}

	firstElement := storage.ArraySlot(storage.SlotKey(arraySlot))
	element, err := inspector.Read(ctx, firstElement)
	if err != nil {
		return nil, err
	}
	log.Info().Str(logger.FieldSlot, firstElement.Hex()).
		Msgf("Location %s: %s (%s)", firstElement.Hex(), element.Value.Hex(), element.Uint().Dec())
	rep.AddDerived("myArray[0]", firstElement, element.Value)

	mapEntry := storage.MappingSlot(storage.SlotKey(0), storage.SlotKey(mappingSlot))
	entry, err := inspector.Read(ctx, mapEntry)
	if err != nil {
		return nil, err
	}
	log.Info().Str(logger.FieldSlot, mapEntry.Hex()).
		Msgf("Location %s: %s (%s)", mapEntry.Hex(), entry.Value.Hex(), entry.Uint().Dec())
	rep.AddDerived("myMap[0]", mapEntry, entry.Value)

	artifact, err := env.Artifact(contracts.FunWithStorage)
	if err != nil {
		return nil, err
	}
	if rep.Layout, err = inspector.Layout(ctx, artifact.StorageLayout); err != nil {
		return nil, err
	}
	for _, s := range rep.Layout {
		log.Debug().Str(logger.FieldSlot, s.Key.Hex()).Msgf("%s = %s", s.Label, s.Value.Hex())
	}
	return rep, nil
}

const (
	traceSourceNode   = "debug_traceTransaction"
	traceSourceReplay = "local replay of the creation code"
)

// constructorWrites asks the node for the deployment trace and, when it has
// no debug namespace, replays the creation code locally.
func constructorWrites(ctx context.Context, env *deployments.Env, d *deployments.Deployment) ([]storage.StorageWrite, string, error) {
	source := traceSourceNode
	result, err := storage.TraceTransaction(ctx, env.Network.RPC, d.TxHash)
	if errors.Is(err, storage.ErrTraceUnsupported) {
		env.Logger().Debug().Err(err).Msg("Replaying creation code locally")
		source = traceSourceReplay
		input := append(bytes.Clone(d.Bytecode), d.EncodedArgs...)
		result, err = storage.ReplayCreation(input, d.Deployer, nil)
	}
	if err != nil {
		return nil, "", err
	}
	writes, err := storage.StorageWrites(result)
	if err != nil {
		return nil, "", err
	}
	return writes, source, nil
}

func joinInts(values []*big.Int) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v.String()
	}
	return out
}
