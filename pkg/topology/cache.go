package topology

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

const lastGoodFile = "topology_last_good.yaml.gz"

// DefaultCacheDir is where the server keeps the last successfully loaded
// topology document when no directory is configured.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), "metroplan-topology-cache")
}

func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveLastGood writes data atomically so a crash mid-write never leaves a
// truncated document behind.
func SaveLastGood(cacheDir string, data []byte) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(cacheDir, lastGoodFile)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	zw, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}

	_, writeErr := zw.Write(data)
	closeErr := zw.Close()
	fileCloseErr := f.Close()
	for _, err := range []error{writeErr, closeErr, fileCloseErr} {
		if err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return path, nil
}

func LoadLastGood(cacheDir string) ([]byte, string, error) {
	path := filepath.Join(cacheDir, lastGoodFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, path, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, path, err
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, path, err
	}
	return data, path, nil
}
