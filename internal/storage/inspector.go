package storage

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/VectorBits/fundlab/internal/logger"
	"github.com/VectorBits/fundlab/internal/solc"
)

const defaultConcurrency = 4

// Reader is the eth_getStorageAt subset of a chain backend.
type Reader interface {
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// Slot is one storage word, optionally labelled from the compiler layout.
// For packed variables Value holds the extracted, right-aligned bytes.
type Slot struct {
	Key   common.Hash
	Value common.Hash
	Label string
	Type  string
}

func (s Slot) Uint() *uint256.Int {
	return Word(s.Value.Bytes())
}

// Inspector reads the storage of one contract.
type Inspector struct {
	reader      Reader
	address     common.Address
	block       *big.Int
	concurrency int
	log         zerolog.Logger
}

func NewInspector(reader Reader, address common.Address) *Inspector {
	return &Inspector{
		reader:      reader,
		address:     address,
		concurrency: defaultConcurrency,
		log:         logger.New("storage").With().Str(logger.FieldAddress, address.Hex()).Logger(),
	}
}

// AtBlock pins reads to a block; nil means latest.
func (i *Inspector) AtBlock(block *big.Int) *Inspector {
	i.block = block
	return i
}

func (i *Inspector) WithConcurrency(n int) *Inspector {
	if n > 0 {
		i.concurrency = n
	}
	return i
}

func (i *Inspector) Address() common.Address {
	return i.address
}

func (i *Inspector) Read(ctx context.Context, key common.Hash) (Slot, error) {
	raw, err := i.reader.StorageAt(ctx, i.address, key, i.block)
	if err != nil {
		return Slot{}, fmt.Errorf("failed to read slot %s: %w", key.Hex(), err)
	}
	return Slot{Key: key, Value: common.BytesToHash(raw)}, nil
}

// Walk reads count consecutive slots starting at from. Reads run
// concurrently; the result is ordered by slot.
func (i *Inspector) Walk(ctx context.Context, from, count uint64) ([]Slot, error) {
	slots := make([]Slot, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for n := uint64(0); n < count; n++ {
		g.Go(func() error {
			slot, err := i.Read(ctx, SlotKey(from+n))
			if err != nil {
				return err
			}
			slot.Label = "slot " + strconv.FormatUint(from+n, 10)
			slots[n] = slot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	i.log.Debug().Uint64("from", from).Uint64("count", count).Msg("Walked storage")
	return slots, nil
}

// Layout reads every variable in the compiler's storage layout. Dynamic
// arrays yield their length and first element; mappings only their declared
// slot since keys cannot be enumerated.
func (i *Inspector) Layout(ctx context.Context, layout *solc.StorageLayout) ([]Slot, error) {
	if layout == nil {
		return nil, nil
	}
	var out []Slot
	for _, entry := range layout.Storage {
		p, ok := SlotKeyFromString(entry.Slot)
		if !ok {
			return nil, fmt.Errorf("%s: invalid slot %q", entry.Label, entry.Slot)
		}
		typ := layout.Types[entry.Type]

		slot, err := i.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		slot.Type = typ.Label

		switch typ.Encoding {
		case "dynamic_array":
			slot.Label = entry.Label + ".length"
			out = append(out, slot)

			if slot.Uint().IsZero() {
				continue
			}
			base := layout.Types[typ.Base]
			size := numberOfBytes(base)
			first, err := i.Read(ctx, ArrayElementSlot(p, 0, wordsPerItem(size)))
			if err != nil {
				return nil, err
			}
			first.Value = extract(first.Value, 0, size)
			first.Label = entry.Label + "[0]"
			first.Type = base.Label
			out = append(out, first)
		case "mapping":
			slot.Label = entry.Label + " (entries at keccak256(key . slot))"
			out = append(out, slot)
		case "bytes":
			slot.Label = entry.Label
			out = append(out, slot)
		default:
			slot.Value = extract(slot.Value, entry.Offset, numberOfBytes(typ))
			slot.Label = entry.Label
			out = append(out, slot)
		}
	}
	return out, nil
}

func numberOfBytes(t solc.StorageType) int {
	n, err := strconv.Atoi(t.NumberOfBytes)
	if err != nil || n <= 0 {
		return 32
	}
	return n
}

func wordsPerItem(size int) uint64 {
	if size <= 32 {
		return 1
	}
	return uint64((size + 31) / 32)
}

// extract returns size bytes found offset bytes from the low end of word.
func extract(word common.Hash, offset, size int) common.Hash {
	if offset == 0 && size >= 32 {
		return word
	}
	if offset < 0 || offset+size > 32 {
		return word
	}
	var out common.Hash
	end := 32 - offset
	copy(out[32-size:], word[end-size:end])
	return out
}
