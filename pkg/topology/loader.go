package topology

import (
	"context"
	"fmt"
	"log/slog"

	"metroplan/internal/domain"
)

type Result struct {
	Topology    *domain.Topology
	Fingerprint string
	Source      string
	FromCache   bool
}

// Loader downloads, parses and fingerprints topology documents. When the
// source is unreachable it falls back to the last document that parsed
// successfully.
type Loader struct {
	downloader *Downloader
	parser     *Parser
	cacheDir   string
	logger     *slog.Logger
}

// NewLoader creates a loader. An empty cacheDir disables the last-good
// fallback.
func NewLoader(source string, maxRetries int, cacheDir string, logger *slog.Logger) *Loader {
	return &Loader{
		downloader: NewDownloader(source, maxRetries, logger),
		parser:     NewParser(logger),
		cacheDir:   cacheDir,
		logger:     logger.With("component", "topology_loader"),
	}
}

func (l *Loader) Source() string { return l.downloader.Source() }

func (l *Loader) Load(ctx context.Context) (*Result, error) {
	data, err := l.downloader.Download(ctx)
	fromCache := false
	if err != nil {
		if l.cacheDir == "" {
			return nil, err
		}
		cached, path, cacheErr := LoadLastGood(l.cacheDir)
		if cacheErr != nil {
			return nil, fmt.Errorf("%w (no cached copy: %v)", err, cacheErr)
		}
		l.logger.Warn("topology source unavailable, using last good copy", "path", path, "error", err)
		data = cached
		fromCache = true
	}

	t, err := l.parser.Parse(data)
	if err != nil {
		return nil, err
	}

	if !fromCache && l.cacheDir != "" {
		if path, err := SaveLastGood(l.cacheDir, data); err != nil {
			l.logger.Warn("failed to persist topology copy", "error", err)
		} else {
			l.logger.Debug("persisted topology copy", "path", path)
		}
	}

	return &Result{
		Topology:    t,
		Fingerprint: Fingerprint(data),
		Source:      l.downloader.Source(),
		FromCache:   fromCache,
	}, nil
}
