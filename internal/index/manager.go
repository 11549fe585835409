package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DarthPollos/CV-Compare-Project/internal/embedding"
)

// Source returns the documents to index, in a stable order.
type Source func(ctx context.Context) ([]Document, error)

// Manager owns the current index and its rebuild lifecycle.
// Rebuilds produce a new Index that replaces the old one in a single swap.
type Manager struct {
	provider embedding.Provider
	source   Source
	path     string
	opts     BuildOptions
	logger   *zap.Logger

	current atomic.Pointer[Index]
	group   singleflight.Group
	// buildMu orders loads and rebuilds so an older index never replaces a newer one.
	buildMu sync.Mutex
}

func NewManager(provider embedding.Provider, source Source, path string, opts BuildOptions, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Manager{
		provider: provider,
		source:   source,
		path:     path,
		opts:     opts,
		logger:   logger,
	}
}

// Current returns the loaded index or nil.
func (m *Manager) Current() *Index {
	return m.current.Load()
}

// Ensure returns a usable index. With rebuild set the index is always
// regenerated from the source and persisted. Otherwise the in-memory index is
// reused, then the persisted one, and only then a fresh build happens.
func (m *Manager) Ensure(ctx context.Context, rebuild bool) (*Index, error) {
	if !rebuild {
		if cur := m.current.Load(); cur != nil && cur.Model() == m.provider.Model() {
			return cur, nil
		}
	}

	key := "load"
	if rebuild {
		key = "rebuild"
	}

	// The shared call outlives any single caller, each waiter gives up on its own ctx.
	work := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		m.buildMu.Lock()
		defer m.buildMu.Unlock()

		if !rebuild {
			if cur := m.current.Load(); cur != nil && cur.Model() == m.provider.Model() {
				return cur, nil
			}
			idx, err := m.load()
			if err == nil {
				return idx, nil
			}
			switch {
			case errors.Is(err, fs.ErrNotExist):
				m.logger.Info("no persisted index, building", zap.String("path", m.path))
			case errors.Is(err, ErrIndexCorrupt):
				m.logger.Warn("persisted index unusable, rebuilding", zap.String("path", m.path), zap.Error(err))
			default:
				return nil, err
			}
		}
		return m.rebuild(work)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for index %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			m.logger.Debug("index request collapsed", zap.String("op", key))
		}
		return res.Val.(*Index), nil
	}
}

func (m *Manager) load() (*Index, error) {
	if m.path == "" {
		return nil, fs.ErrNotExist
	}

	idx, err := Load(m.path, m.provider.Model())
	if err != nil {
		return nil, err
	}

	m.current.Store(idx)
	m.logger.Info("index loaded",
		zap.String("path", m.path),
		zap.Int("documents", idx.Len()),
		zap.Time("created_at", idx.CreatedAt()),
	)
	return idx, nil
}

func (m *Manager) rebuild(ctx context.Context) (*Index, error) {
	docs, err := m.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	idx, err := Build(ctx, m.provider, docs, m.opts)
	if err != nil {
		return nil, err
	}

	if m.path != "" {
		if err := idx.Save(m.path); err != nil {
			m.logger.Warn("saving index failed, keeping it in memory", zap.String("path", m.path), zap.Error(err))
		} else {
			m.logger.Info("index saved", zap.String("path", m.path), zap.Int("documents", idx.Len()))
		}
	}

	m.current.Store(idx)
	return idx, nil
}
