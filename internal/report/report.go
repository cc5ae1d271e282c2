package report

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/VectorBits/fundlab/internal/storage"
)

// GetterCall is one getBoth(key) round of the storage walk.
type GetterCall struct {
	Index  uint64
	Array  []*big.Int
	Mapped bool
	Slot   storage.Slot
}

// DerivedSlot is a slot computed from a declaration rather than walked.
type DerivedSlot struct {
	Name  string
	Slot  common.Hash
	Value common.Hash
}

// StorageReport collects everything the storage script observed.
type StorageReport struct {
	Contract    string
	Address     common.Address
	Network     string
	TxHash      common.Hash
	GeneratedAt time.Time

	Calls   []GetterCall
	Layout  []storage.Slot
	Writes  []storage.StorageWrite
	Derived []DerivedSlot
	// TraceSource names where Writes came from: the node's debug trace or
	// a local replay of the creation code.
	TraceSource string
	// TraceError explains why Writes is empty when tracing was unavailable.
	TraceError string
}

func NewStorageReport(contract string, address common.Address, network string, txHash common.Hash) *StorageReport {
	return &StorageReport{
		Contract:    contract,
		Address:     address,
		Network:     network,
		TxHash:      txHash,
		GeneratedAt: time.Now(),
	}
}

func (r *StorageReport) AddCall(c GetterCall) {
	r.Calls = append(r.Calls, c)
}

func (r *StorageReport) AddDerived(name string, slot, value common.Hash) {
	r.Derived = append(r.Derived, DerivedSlot{Name: name, Slot: slot, Value: value})
}

// Derive looks up a derived slot by name.
func (r *StorageReport) Derive(name string) (DerivedSlot, bool) {
	for _, d := range r.Derived {
		if d.Name == name {
			return d, true
		}
	}
	return DerivedSlot{}, false
}
