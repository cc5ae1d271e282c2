package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Reporter renders storage reports and files them under a directory.
type Reporter struct {
	generator Generator
	dir       string
}

// NewReporter writes into dir, "reports" when empty.
func NewReporter(generator Generator, dir string) *Reporter {
	if dir == "" {
		dir = "reports"
	}
	return &Reporter{generator: generator, dir: dir}
}

func (r *Reporter) GenerateAndSave(report *StorageReport) (string, error) {
	content, err := r.generator.Generate(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(r.dir, report.FileName())
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}

// FileName is storage_<network>_<contract>_<tx>.md, with the first four
// bytes of the deployment hash; a report without one falls back to its
// generation time.
func (r *StorageReport) FileName() string {
	suffix := r.GeneratedAt.Format("20060102T150405")
	if r.TxHash != (common.Hash{}) {
		suffix = r.TxHash.Hex()[2:10]
	}
	return fmt.Sprintf("storage_%s_%s_%s.md", fileSafe(r.Network), fileSafe(r.Contract), suffix)
}

// fileSafe keeps [A-Za-z0-9._-] and maps everything else to '_'.
func fileSafe(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
	if s = strings.Trim(s, "._-"); s == "" {
		return "unknown"
	}
	return s
}

// writeFileAtomic leaves either the old file or the complete new one at path.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
