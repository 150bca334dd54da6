package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FileStore persists items as JSON files laid out as
// {root}/{namespace...}/{key}.json. Suited to local development and
// single-process deployments
type FileStore struct {
	root string
}

const (
	fileExt      = ".json"
	dirPerm      = 0o755
	filePerm     = 0o644
	tmpSuffix    = ".tmp"
	maxFileDepth = 16
)

var ErrNamespaceTooDeep = errors.New("namespace exceeds maximum depth")

// NewFileStore creates a file-backed store rooted at the given directory,
// creating it when absent
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Get(
	_ context.Context, ns []string, key string,
) (*Item, error) {
	path, err := s.itemPath(ns, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *FileStore) Put(
	ctx context.Context, ns []string, key string, value json.RawMessage,
) error {
	path, err := s.itemPath(ns, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}

	item := &Item{
		Namespace: slices.Clone(ns),
		Key:       key,
		Value:     value,
	}
	if existing, err := s.Get(ctx, ns, key); err == nil && existing != nil {
		item.CreatedAt = existing.CreatedAt
	}
	item.UpdatedAt = time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = item.UpdatedAt
	}

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	// write-then-rename keeps readers from observing partial files
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) Delete(
	_ context.Context, ns []string, key string,
) error {
	path, err := s.itemPath(ns, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) List(_ context.Context, ns []string) ([]*Item, error) {
	dir, err := s.namespaceDir(ns)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*Item{}, nil
		}
		return nil, err
	}

	var items []*Item
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var item Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	slices.SortFunc(items, func(a, b *Item) int {
		return strings.Compare(a.Key, b.Key)
	})
	return items, nil
}

func (s *FileStore) itemPath(ns []string, key string) (string, error) {
	if err := ValidateRef(ns, key); err != nil {
		return "", err
	}
	dir, err := s.namespaceDir(ns)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, key+fileExt), nil
}

func (s *FileStore) namespaceDir(ns []string) (string, error) {
	if len(ns) == 0 {
		return "", ErrEmptyNamespace
	}
	if len(ns) > maxFileDepth {
		return "", ErrNamespaceTooDeep
	}
	return filepath.Join(append([]string{s.root}, ns...)...), nil
}
