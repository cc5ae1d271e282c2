package report

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VectorBits/fundlab/internal/storage"
)

type Generator interface {
	Generate(report *StorageReport) (string, error)
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (g *MarkdownGenerator) Generate(r *StorageReport) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil report")
	}
	var b strings.Builder

	fmt.Fprintf(&b, "# Storage Report: %s\n\n", r.Contract)
	fmt.Fprintf(&b, "**Network**: %s\n", r.Network)
	fmt.Fprintf(&b, "**Address**: %s\n", r.Address.Hex())
	fmt.Fprintf(&b, "**Deploy Tx**: %s\n", r.TxHash.Hex())
	fmt.Fprintf(&b, "**Generated**: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	if len(r.Calls) > 0 {
		b.WriteString("## Slots\n\n")
		b.WriteString("| # | getBoth(0) array | getBoth(0) mapped | raw value |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, c := range r.Calls {
			fmt.Fprintf(&b, "| %d | %s | %t | `%s` |\n", c.Index, formatInts(c.Array), c.Mapped, c.Slot.Value.Hex())
		}
		b.WriteString("\n")
	}

	if len(r.Layout) > 0 {
		b.WriteString("## Storage Layout\n\n")
		b.WriteString("| variable | type | slot | value |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, s := range r.Layout {
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n", s.Label, s.Type, shortHash(s.Key), s.Uint().Dec())
		}
		b.WriteString("\n")
	}

	b.WriteString("## SSTORE Writes\n\n")
	switch {
	case r.TraceError != "":
		fmt.Fprintf(&b, "_Trace unavailable: %s_\n\n", r.TraceError)
	case len(r.Writes) == 0:
		b.WriteString("_No storage writes._\n\n")
	default:
		if r.TraceSource != "" {
			fmt.Fprintf(&b, "_Source: %s_\n\n", r.TraceSource)
		}
		b.WriteString("| pc | depth | slot | value |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, w := range r.Writes {
			fmt.Fprintf(&b, "| %d | %d | `%s` | %s |\n", w.PC, w.Depth, shortHash(w.Slot), storage.Word(w.Value.Bytes()).Dec())
		}
		b.WriteString("\n")
	}

	if len(r.Derived) > 0 {
		b.WriteString("## Derived Slots\n\n")
		for _, d := range r.Derived {
			fmt.Fprintf(&b, "- **%s** at `%s`: `%s` (%s)\n", d.Name, d.Slot.Hex(), d.Value.Hex(), storage.Word(d.Value.Bytes()).Dec())
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func formatInts(values []*big.Int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// shortHash prints small slot indices as decimals and hashed slots in full.
func shortHash(h common.Hash) string {
	n := storage.Word(h.Bytes())
	if n.IsUint64() && n.Uint64() < 1<<16 {
		return n.Dec()
	}
	return h.Hex()
}
