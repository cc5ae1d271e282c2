package solc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// StandardInput is the solc --standard-json request. Explorers accept the
// same document for source verification.
type StandardInput struct {
	Language string                `json:"language"`
	Sources  map[string]SourceFile `json:"sources"`
	Settings Settings              `json:"settings"`
}

type SourceFile struct {
	Content string `json:"content"`
}

type Settings struct {
	Optimizer       Optimizer                      `json:"optimizer"`
	EVMVersion      string                         `json:"evmVersion,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type Optimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

type StandardOutput struct {
	Errors    []CompilerError                      `json:"errors,omitempty"`
	Sources   map[string]OutputSource              `json:"sources"`
	Contracts map[string]map[string]OutputContract `json:"contracts"`
}

type CompilerError struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

type OutputSource struct {
	ID int `json:"id"`
}

type OutputContract struct {
	ABI           json.RawMessage `json:"abi"`
	Metadata      string          `json:"metadata"`
	StorageLayout *StorageLayout  `json:"storageLayout"`
	EVM           struct {
		Bytecode         Bytecode `json:"bytecode"`
		DeployedBytecode Bytecode `json:"deployedBytecode"`
	} `json:"evm"`
}

type Bytecode struct {
	Object string `json:"object"`
}

// StorageLayout mirrors the compiler's storageLayout output.
type StorageLayout struct {
	Storage []StorageEntry         `json:"storage"`
	Types   map[string]StorageType `json:"types"`
}

type StorageEntry struct {
	AstID    int    `json:"astId"`
	Contract string `json:"contract"`
	Label    string `json:"label"`
	Offset   int    `json:"offset"`
	Slot     string `json:"slot"`
	Type     string `json:"type"`
}

type StorageType struct {
	Encoding      string `json:"encoding"`
	Label         string `json:"label"`
	NumberOfBytes string `json:"numberOfBytes"`
	Key           string `json:"key,omitempty"`
	Value         string `json:"value,omitempty"`
	Base          string `json:"base,omitempty"`
}

// Artifact is one compiled contract ready for deployment.
type Artifact struct {
	ContractName     string
	SourceName       string
	ABI              abi.ABI
	RawABI           json.RawMessage
	Bytecode         []byte
	DeployedBytecode []byte
	StorageLayout    *StorageLayout
	Metadata         string
}

// FullyQualifiedName returns "<source>:<contract>", the form explorers expect.
func (a *Artifact) FullyQualifiedName() string {
	return a.SourceName + ":" + a.ContractName
}

// Build is the result of one compiler invocation.
type Build struct {
	Input           *StandardInput
	CompilerVersion string
	Warnings        []string
	Artifacts       map[string]*Artifact
}

// Artifact looks up a contract by its bare name.
func (b *Build) Artifact(name string) (*Artifact, error) {
	a, ok := b.Artifacts[name]
	if !ok {
		return nil, fmt.Errorf("no artifact for contract %s", name)
	}
	return a, nil
}

// Names lists the compiled contracts in sorted order.
func (b *Build) Names() []string {
	names := make([]string, 0, len(b.Artifacts))
	for name := range b.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Options struct {
	// Version pins the compiler; empty means the highest pragma version.
	Version          string
	OptimizerEnabled bool
	OptimizerRuns    int
}

func NewStandardInput(sources map[string]string, opts Options) *StandardInput {
	input := &StandardInput{
		Language: "Solidity",
		Sources:  make(map[string]SourceFile, len(sources)),
		Settings: Settings{
			Optimizer: Optimizer{Enabled: opts.OptimizerEnabled, Runs: opts.OptimizerRuns},
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": {"abi", "evm.bytecode.object", "evm.deployedBytecode.object", "storageLayout", "metadata"},
				},
			},
		},
	}
	if input.Settings.Optimizer.Runs == 0 {
		input.Settings.Optimizer.Runs = 200
	}
	for name, content := range sources {
		input.Sources[name] = SourceFile{Content: content}
	}
	return input
}

// PickVersion returns the highest version required by any source pragma.
func PickVersion(sources map[string]string) string {
	var best string
	for _, src := range sources {
		v := ExtractPragmaVersion(src)
		if v != "" && (best == "" || compareVersions(v, best) > 0) {
			best = v
		}
	}
	return best
}

// Compile runs solc over the in-memory sources with the default manager.
func Compile(ctx context.Context, sources map[string]string, opts Options) (*Build, error) {
	return GetManager().Compile(ctx, sources, opts)
}

func (m *Manager) Compile(ctx context.Context, sources map[string]string, opts Options) (*Build, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources to compile")
	}
	version := opts.Version
	if version == "" {
		version = PickVersion(sources)
	}
	if version == "" {
		return nil, errors.New("no pragma solidity found and no compiler version configured")
	}

	solcPath, err := m.GetSolcPath(ctx, version)
	if err != nil {
		return nil, err
	}
	longVersion, err := LongVersion(ctx, solcPath)
	if err != nil {
		return nil, err
	}

	input := NewStandardInput(sources, opts)
	output, err := runStandardJSON(ctx, solcPath, input)
	if err != nil {
		return nil, err
	}
	build, err := ParseOutput(input, output, longVersion)
	if err != nil {
		return nil, err
	}
	m.log.Info().
		Str("version", longVersion).
		Int("contracts", len(build.Artifacts)).
		Msg("Compiled contracts")
	return build, nil
}

func runStandardJSON(ctx context.Context, solcPath string, input *StandardInput) ([]byte, error) {
	dir, err := os.MkdirTemp("", "fundlab_solc_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compiler input: %w", err)
	}
	inputFile := filepath.Join(dir, "input.json")
	if err := os.WriteFile(inputFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, solcPath, "--standard-json", inputFile)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("solc failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ParseOutput turns raw standard-json output into artifacts. Any error
// severity diagnostic fails the build; warnings are kept on the Build.
func ParseOutput(input *StandardInput, output []byte, longVersion string) (*Build, error) {
	var out StandardOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal compiler output: %w", err)
	}

	build := &Build{
		Input:           input,
		CompilerVersion: longVersion,
		Artifacts:       make(map[string]*Artifact),
	}
	var errs []string
	for _, e := range out.Errors {
		msg := e.FormattedMessage
		if msg == "" {
			msg = e.Message
		}
		if e.Severity == "error" {
			errs = append(errs, msg)
		} else {
			build.Warnings = append(build.Warnings, msg)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("compilation failed: %s", strings.Join(errs, "\n"))
	}

	for sourceName, contracts := range out.Contracts {
		for name, c := range contracts {
			artifact, err := newArtifact(sourceName, name, c)
			if err != nil {
				return nil, err
			}
			if prev, ok := build.Artifacts[name]; ok {
				return nil, fmt.Errorf("contract name %s is defined in both %s and %s", name, prev.SourceName, sourceName)
			}
			build.Artifacts[name] = artifact
		}
	}
	return build, nil
}

func newArtifact(sourceName, name string, c OutputContract) (*Artifact, error) {
	parsed, err := abi.JSON(bytes.NewReader(c.ABI))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid abi: %w", name, err)
	}
	bytecode, err := decodeObject(c.EVM.Bytecode.Object)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid bytecode: %w", name, err)
	}
	deployed, err := decodeObject(c.EVM.DeployedBytecode.Object)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid deployed bytecode: %w", name, err)
	}
	return &Artifact{
		ContractName:     name,
		SourceName:       sourceName,
		ABI:              parsed,
		RawABI:           c.ABI,
		Bytecode:         bytecode,
		DeployedBytecode: deployed,
		StorageLayout:    c.StorageLayout,
		Metadata:         c.Metadata,
	}, nil
}

func decodeObject(object string) ([]byte, error) {
	if object == "" {
		return nil, nil
	}
	if !strings.HasPrefix(object, "0x") {
		object = "0x" + object
	}
	return hexutil.Decode(object)
}
