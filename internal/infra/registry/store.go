package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

const (
	toolsBucketName      = "tools"
	embeddingsBucketName = "embeddings"
)

// Store is the durable tool registry. Tool metadata and its embedding
// vector are written in a single transaction so the index never diverges
// from the primary record; bolt's single-writer/multi-reader transactions
// give the exclusive-write / shared-read discipline registry mutations
// require.
type Store struct {
	mu       sync.RWMutex
	db       *bolt.DB
	path     string
	closed   bool
	embedder domain.Embedder
	logger   *zap.Logger
}

// StoreOptions configures a registry store.
type StoreOptions struct {
	// Embedder, when set, indexes tool descriptions for semantic search.
	Embedder domain.Embedder
	Logger   *zap.Logger
}

// Open opens (creating if needed) the registry database at path.
func Open(path string, opts StoreOptions) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	if dir := filepath.Dir(trimmed); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure registry dir: %w", err)
		}
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:       db,
		path:     trimmed,
		embedder: opts.Embedder,
		logger:   logger.Named("registry"),
	}, nil
}

func ensureSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{toolsBucketName, embeddingsBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Add persists and indexes tool. Fails with ErrDuplicateTool when a tool
// with the same name exists and replace is false. The registration
// sequence survives replacement so lexical tie-breaks stay stable.
// Indexing is complete before Add returns.
func (s *Store) Add(ctx context.Context, tool domain.ToolMetadata, replace bool) error {
	const op = "registry.add"
	if strings.TrimSpace(tool.Name) == "" {
		return domain.E(domain.CodeInvalidArgument, op, "tool name is required", nil)
	}
	if strings.TrimSpace(tool.URI) == "" {
		return domain.E(domain.CodeInvalidArgument, op, "tool uri is required", nil)
	}

	// Embedding is network I/O; compute it before entering the write
	// transaction.
	var vector []float64
	if s.embedder != nil {
		vectors, err := s.embedder.EmbedStrings(ctx, []string{tool.Description})
		if err != nil {
			return domain.E(domain.CodeUnavailable, op, "embed description", err)
		}
		if len(vectors) > 0 {
			vector = vectors[0]
		}
	}

	return s.update(func(tx *bolt.Tx) error {
		tools := tx.Bucket([]byte(toolsBucketName))
		key := []byte(tool.Name)

		if existing := tools.Get(key); existing != nil {
			if !replace {
				return domain.E(domain.CodeAlreadyExists, op, tool.Name, domain.ErrDuplicateTool)
			}
			var prior domain.ToolMetadata
			if err := json.Unmarshal(existing, &prior); err == nil {
				tool.Seq = prior.Seq
			}
		}
		if tool.Seq == 0 {
			seq, err := tools.NextSequence()
			if err != nil {
				return fmt.Errorf("next sequence: %w", err)
			}
			tool.Seq = seq
		}

		record, err := json.Marshal(tool)
		if err != nil {
			return fmt.Errorf("encode tool %s: %w", tool.Name, err)
		}
		if err := tools.Put(key, record); err != nil {
			return fmt.Errorf("write tool %s: %w", tool.Name, err)
		}

		embeddings := tx.Bucket([]byte(embeddingsBucketName))
		if vector == nil {
			return embeddings.Delete(key)
		}
		encoded, err := json.Marshal(vector)
		if err != nil {
			return fmt.Errorf("encode embedding %s: %w", tool.Name, err)
		}
		return embeddings.Put(key, encoded)
	})
}

// Get returns the tool registered under name.
func (s *Store) Get(name string) (domain.ToolMetadata, error) {
	const op = "registry.get"
	var tool domain.ToolMetadata
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(toolsBucketName)).Get([]byte(name))
		if raw == nil {
			return domain.E(domain.CodeNotFound, op, name, domain.ErrToolNotFound)
		}
		return json.Unmarshal(raw, &tool)
	})
	return tool, err
}

// List returns every registered tool in registration order.
func (s *Store) List() ([]domain.ToolMetadata, error) {
	var tools []domain.ToolMetadata
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(toolsBucketName)).ForEach(func(_, value []byte) error {
			var tool domain.ToolMetadata
			if err := json.Unmarshal(value, &tool); err != nil {
				return fmt.Errorf("decode tool record: %w", err)
			}
			tools = append(tools, tool)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Seq < tools[j].Seq })
	return tools, nil
}

// Remove deletes the tool and its index entry atomically.
func (s *Store) Remove(name string) error {
	const op = "registry.remove"
	return s.update(func(tx *bolt.Tx) error {
		tools := tx.Bucket([]byte(toolsBucketName))
		key := []byte(name)
		if tools.Get(key) == nil {
			return domain.E(domain.CodeNotFound, op, name, domain.ErrToolNotFound)
		}
		if err := tools.Delete(key); err != nil {
			return fmt.Errorf("delete tool %s: %w", name, err)
		}
		return tx.Bucket([]byte(embeddingsBucketName)).Delete(key)
	})
}

// Categories returns the distinct tool categories, sorted.
func (s *Store) Categories() ([]string, error) {
	tools, err := s.List()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(tools))
	var categories []string
	for _, tool := range tools {
		if tool.Category == "" {
			continue
		}
		if _, ok := seen[tool.Category]; ok {
			continue
		}
		seen[tool.Category] = struct{}{}
		categories = append(categories, tool.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// Embedding returns the stored description vector for name, if indexed.
func (s *Store) Embedding(name string) ([]float64, bool, error) {
	var vector []float64
	found := false
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(embeddingsBucketName)).Get([]byte(name))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &vector)
	})
	return vector, found, err
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.Update(fn)
}
