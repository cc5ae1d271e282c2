package solc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	solcconfig "github.com/fabelx/go-solc-select/pkg/config"
	"github.com/fabelx/go-solc-select/pkg/installer"
	"github.com/fabelx/go-solc-select/pkg/versions"
	"github.com/rs/zerolog"

	"github.com/VectorBits/fundlab/internal/logger"
)

var (
	pragmaRe      = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
	constraintRe  = regexp.MustCompile(`(<=|>=|<|>|\^|~|=)?\s*(\d+\.\d+\.\d+)`)
	longVersionRe = regexp.MustCompile(`Version:\s*(\d+\.\d+\.\d+\+commit\.[0-9a-f]+)`)
)

// Manager resolves solc binaries by version, installing them through
// go-solc-select when nothing local matches.
type Manager struct {
	mu           sync.RWMutex
	versionCache map[string]string // version -> solc path
	installLocks sync.Map          // version -> *sync.Once
	log          zerolog.Logger
}

var (
	defaultManager *Manager
	once           sync.Once
)

func GetManager() *Manager {
	once.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

func NewManager() *Manager {
	return &Manager{
		versionCache: make(map[string]string),
		log:          logger.New("solc"),
	}
}

// ExtractPragmaVersion returns the highest x.y.z a pragma in source allows
// as a lower bound, or "" when there is none. Strict upper bounds are ignored.
func ExtractPragmaVersion(source string) string {
	matches := pragmaRe.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return ""
	}

	var found []string
	for _, match := range matches {
		for _, c := range constraintRe.FindAllStringSubmatch(match[1], -1) {
			if c[1] == "<" {
				continue
			}
			found = append(found, c[2])
		}
	}
	if len(found) == 0 {
		return ""
	}

	sort.Slice(found, func(i, j int) bool {
		return compareVersions(found[i], found[j]) > 0
	})
	return found[0]
}

func compareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")
	for i := 0; i < 3; i++ {
		var n1, n2 int
		if i < len(parts1) {
			fmt.Sscanf(parts1[i], "%d", &n1)
		}
		if i < len(parts2) {
			fmt.Sscanf(parts2[i], "%d", &n2)
		}
		if n1 != n2 {
			return n1 - n2
		}
	}
	return 0
}

func normalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	for _, prefix := range []string{"^", ">=", "<=", ">", "<", "~", "="} {
		version = strings.TrimPrefix(version, prefix)
	}
	return strings.TrimSpace(version)
}

// GetSolcPath returns an executable solc for version. Lookup order:
// go-solc-select artifacts, ~/.solcx, solc on PATH, then installation.
func (m *Manager) GetSolcPath(ctx context.Context, version string) (string, error) {
	version = normalizeVersion(version)
	if version == "" {
		return "", errors.New("version is empty")
	}

	m.mu.RLock()
	path, ok := m.versionCache[version]
	m.mu.RUnlock()
	if ok && isExecutable(path) {
		return path, nil
	}

	for _, lookup := range []func(context.Context, string) (string, error){
		m.trySolcSelect,
		m.trySolcx,
		m.tryPath,
		m.installVersion,
	} {
		path, err := lookup(ctx, version)
		if err == nil && path != "" {
			m.cachePath(version, path)
			return path, nil
		}
		if err != nil {
			m.log.Debug().Err(err).Str("version", version).Msg("solc lookup failed")
		}
	}
	return "", fmt.Errorf("failed to get solc %s, install it with: solc-select install %s", version, version)
}

func (m *Manager) cachePath(version, path string) {
	m.mu.Lock()
	m.versionCache[version] = path
	m.mu.Unlock()
}

func selectArtifactPath(version string) string {
	name := "solc-" + version
	return filepath.Join(solcconfig.SolcArtifacts, name, name)
}

func (m *Manager) trySolcSelect(_ context.Context, version string) (string, error) {
	if _, ok := versions.GetInstalled()[version]; !ok {
		return "", fmt.Errorf("solc %s is not installed by solc-select", version)
	}
	path := selectArtifactPath(version)
	if !isExecutable(path) {
		return "", fmt.Errorf("solc-select artifact %s is missing", path)
	}
	return path, nil
}

func (m *Manager) trySolcx(_ context.Context, version string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	solcxDir := filepath.Join(homeDir, ".solcx")
	possiblePaths := []string{
		filepath.Join(solcxDir, "solc-v"+version),
		filepath.Join(solcxDir, "solc-"+version),
	}
	if runtime.GOOS == "darwin" {
		possiblePaths = append(possiblePaths, filepath.Join(solcxDir, "solc-v"+version, "bin", "solc"))
	}
	for _, path := range possiblePaths {
		if isExecutable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("solcx version %s not found", version)
}

func (m *Manager) tryPath(ctx context.Context, version string) (string, error) {
	path, err := exec.LookPath("solc")
	if err != nil {
		return "", err
	}
	long, err := LongVersion(ctx, path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(long, "v"+version+"+") {
		return "", fmt.Errorf("solc on PATH is %s, want %s", long, version)
	}
	return path, nil
}

func (m *Manager) installVersion(_ context.Context, version string) (string, error) {
	o, _ := m.installLocks.LoadOrStore(version, &sync.Once{})
	var installErr error
	o.(*sync.Once).Do(func() {
		m.log.Info().Str("version", version).Msg("Installing solc")
		if err := installer.InstallSolc(version); err != nil {
			installErr = fmt.Errorf("failed to install compiler %s: %w", version, err)
		}
	})
	if installErr != nil {
		return "", installErr
	}
	return m.trySolcSelect(context.Background(), version)
}

// LongVersion runs `solc --version` and returns the form explorers expect,
// e.g. "v0.8.8+commit.dddeac2f".
func LongVersion(ctx context.Context, solcPath string) (string, error) {
	out, err := exec.CommandContext(ctx, solcPath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to execute `%s --version`: %w", solcPath, err)
	}
	return parseLongVersion(string(out))
}

func parseLongVersion(out string) (string, error) {
	m := longVersionRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unexpected solc --version output: %q", strings.TrimSpace(out))
	}
	return "v" + m[1], nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
