// Package storage keeps user-imported tokens in a local JSON file.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

// CustomTokenStore persists imported tokens keyed by chain and address
type CustomTokenStore interface {
	List(ctx context.Context) ([]entities.CustomTokenRecord, error)
	Get(ctx context.Context, chainID int64, address string) (entities.CustomTokenRecord, bool, error)
	Put(ctx context.Context, rec entities.CustomTokenRecord) error
	Delete(ctx context.Context, chainID int64, address string) (bool, error)
}

// FileStore holds records in memory and rewrites the file on every change.
// An empty path keeps records in memory only.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	records map[string]entities.CustomTokenRecord
}

// NewFileStore loads path if it exists
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]entities.CustomTokenRecord),
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read custom tokens: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var records []entities.CustomTokenRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse custom tokens: %w", err)
	}
	for _, rec := range records {
		s.records[entities.PriceKey(rec.ChainID, rec.Address)] = rec
	}
	return s, nil
}

func (s *FileStore) List(ctx context.Context) ([]entities.CustomTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

func (s *FileStore) Get(ctx context.Context, chainID int64, address string) (entities.CustomTokenRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[entities.PriceKey(chainID, address)]
	return rec, ok, nil
}

func (s *FileStore) Put(ctx context.Context, rec entities.CustomTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entities.PriceKey(rec.ChainID, rec.Address)
	prev, existed := s.records[key]
	s.records[key] = rec
	if err := s.flush(); err != nil {
		if existed {
			s.records[key] = prev
		} else {
			delete(s.records, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, chainID int64, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entities.PriceKey(chainID, address)
	prev, ok := s.records[key]
	if !ok {
		return false, nil
	}
	delete(s.records, key)
	if err := s.flush(); err != nil {
		s.records[key] = prev
		return false, err
	}
	return true, nil
}

func (s *FileStore) sorted() []entities.CustomTokenRecord {
	out := make([]entities.CustomTokenRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ImportedAt.Before(out[j].ImportedAt)
		}
		return entities.PriceKey(out[i].ChainID, out[i].Address) < entities.PriceKey(out[j].ChainID, out[j].Address)
	})
	return out
}

// flush writes through a temp file so a crash never leaves a torn file
func (s *FileStore) flush() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode custom tokens: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create custom tokens dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".custom_tokens-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write custom tokens: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close custom tokens: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace custom tokens: %w", err)
	}
	return nil
}
