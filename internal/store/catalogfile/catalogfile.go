// Package catalogfile reads and writes the level catalog as a YAML file. It
// is both a standalone catalog and the seed format for "catalog import".
package catalogfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/datallboy/levelkeep/internal/domain"
	"gopkg.in/yaml.v3"
)

type document struct {
	Levels []domain.Descriptor `yaml:"levels"`
}

// Parse decodes a catalog document, applying defaults to and validating
// every level.
func Parse(data []byte) ([]domain.Descriptor, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	seen := make(map[int]bool, len(doc.Levels))
	for i := range doc.Levels {
		d := &doc.Levels[i]
		d.ApplyDefaults()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("%w: duplicate level id %d", domain.ErrInvalidDescriptor, d.ID)
		}
		seen[d.ID] = true
	}
	return doc.Levels, nil
}

// Load reads and parses the catalog at path
func Load(path string) ([]domain.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(data)
}

type File struct {
	path string

	mu     sync.Mutex
	levels []domain.Descriptor
}

// Open loads the catalog at path. A missing file is an empty catalog that is
// created on the first save.
func Open(path string) (*File, error) {
	f := &File{path: path}

	levels, err := Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	f.levels = levels
	return f, nil
}

func (f *File) Descriptors(ctx context.Context) ([]domain.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.levels), nil
}

// SaveDescriptor replaces or adds the level and rewrites the file
func (f *File) SaveDescriptor(ctx context.Context, d domain.Descriptor) error {
	d.ApplyDefaults()
	if err := d.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	levels := slices.Clone(f.levels)
	if i := slices.IndexFunc(levels, func(l domain.Descriptor) bool { return l.ID == d.ID }); i >= 0 {
		levels[i] = d
	} else {
		levels = append(levels, d)
	}
	slices.SortFunc(levels, func(a, b domain.Descriptor) int { return a.ID - b.ID })

	if err := write(f.path, levels); err != nil {
		return err
	}
	f.levels = levels
	return nil
}

func (f *File) Close() error {
	return nil
}

// write replaces path atomically
func write(path string, levels []domain.Descriptor) error {
	data, err := yaml.Marshal(document{Levels: levels})
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing catalog: %w", err)
	}
	return nil
}
