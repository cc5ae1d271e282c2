// Package contracts embeds the Solidity sources deployed by the scripts.
package contracts

import (
	"embed"
	"io/fs"
	"path"
)

// SourceRoot is the prefix of every source unit name handed to the compiler.
const SourceRoot = "contracts"

const (
	FundMe           = "FundMe"
	FunWithStorage   = "FunWithStorage"
	MockV3Aggregator = "MockV3Aggregator"
)

//go:embed *.sol test/*.sol
var Fs embed.FS

// Sources returns every embedded file keyed by its source unit name,
// e.g. "contracts/FundMe.sol".
func Sources() (map[string]string, error) {
	sources := make(map[string]string)
	err := fs.WalkDir(Fs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".sol" {
			return nil
		}
		data, err := Fs.ReadFile(p)
		if err != nil {
			return err
		}
		sources[path.Join(SourceRoot, p)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}
