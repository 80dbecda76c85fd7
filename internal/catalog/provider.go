package catalog

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xtding233/wish-ledger/internal/logger"
)

// Provider hands out the current catalog snapshot. Callers keep the snapshot
// they got for the whole draw so a reload never changes a running session.
type Provider interface {
	Snapshot() *Snapshot
}

// Static serves one fixed snapshot.
type Static struct{ s *Snapshot }

func NewStatic(s *Snapshot) *Static   { return &Static{s: s} }
func (p *Static) Snapshot() *Snapshot { return p.s }

// FileProvider serves the catalog file at path and can reload it in place.
type FileProvider struct {
	path     string
	current  atomic.Pointer[Snapshot]
	log      logger.Logger
	debounce time.Duration
	onReload func(*Snapshot, error)
}

type FileOption func(*FileProvider)

// WithLogger sets the logger used for reload events.
func WithLogger(l logger.Logger) FileOption {
	return func(p *FileProvider) { p.log = l.Named("catalog") }
}

// WithDebounce coalesces bursts of file events (editors often write twice).
func WithDebounce(d time.Duration) FileOption {
	return func(p *FileProvider) { p.debounce = d }
}

// OnReload is called after every reload attempt with the new snapshot or the error.
func OnReload(fn func(*Snapshot, error)) FileOption {
	return func(p *FileProvider) { p.onReload = fn }
}

// NewFileProvider loads path once. The file must be valid at startup.
func NewFileProvider(path string, opts ...FileOption) (*FileProvider, error) {
	p := &FileProvider{path: path, log: logger.NewNoop(), debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(p)
	}
	s, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	p.current.Store(s)
	return p, nil
}

func (p *FileProvider) Snapshot() *Snapshot { return p.current.Load() }

// Reload re-reads the file. On error the previous snapshot stays active.
func (p *FileProvider) Reload() error {
	s, err := LoadFile(p.path)
	if err != nil {
		p.log.Warn("catalog reload rejected, keeping previous snapshot",
			"path", p.path, "version", p.Snapshot().Version(), "error", err)
	} else {
		p.current.Store(s)
		p.log.Info("catalog reloaded", "path", p.path, "version", s.Version(),
			"items", len(s.items), "banners", len(s.banners))
	}
	if p.onReload != nil {
		p.onReload(s, err)
	}
	return err
}

// Watch reloads the catalog whenever its file changes until ctx is done.
// The parent directory is watched so atomic rename-over saves are seen.
func (p *FileProvider) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(p.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(p.debounce)
			} else {
				timer.Reset(p.debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			_ = p.Reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.log.Error("catalog watcher error", "error", err)
		}
	}
}
