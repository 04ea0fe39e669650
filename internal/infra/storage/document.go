package storage

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields is one guild entry of the document. Values stay raw so keys we
// don't know about survive a rewrite untouched.
type Fields map[string]json.RawMessage

// Document is the whole guild-keyed JSON file held in memory. Every mutation
// rewrites the file before the in-memory copy is swapped, so a failed write
// leaves memory as it was.
type Document struct {
	path string
	log  *logrus.Entry

	mu   sync.RWMutex
	data map[string]Fields
}

// OpenDocument loads path. A missing, unreadable or corrupt file yields an
// empty document; it never fails startup.
func OpenDocument(path string, log *logrus.Entry) *Document {
	d := &Document{path: path, log: log, data: map[string]Fields{}}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.WithField("path", path).Info("document not found, starting empty")
		return d
	case err != nil:
		log.WithError(err).WithField("path", path).Warn("document unreadable, starting empty")
		return d
	}

	var data map[string]Fields
	if err := json.Unmarshal(raw, &data); err != nil {
		log.WithError(err).WithField("path", path).Warn("document corrupt, starting empty")
		return d
	}
	for k, v := range data {
		if v == nil {
			v = Fields{}
		}
		d.data[k] = v
	}
	log.WithField("path", path).WithField("guilds", len(d.data)).Info("document loaded")
	return d
}

// Get returns a copy of the entry under key.
func (d *Document) Get(key string) (Fields, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.data[key]
	if !ok {
		return nil, false
	}
	return maps.Clone(f), true
}

// Len is the number of guild entries.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.data)
}

// Update runs fn over a copy of the entry under key (empty if absent) and
// persists the result. The read-modify-write holds the write lock, so
// updates are applied one at a time in arrival order.
func (d *Document) Update(key string, fn func(f Fields) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := maps.Clone(d.data[key])
	if f == nil {
		f = Fields{}
	}
	if err := fn(f); err != nil {
		return err
	}

	next := maps.Clone(d.data)
	next[key] = f
	if err := d.write(next); err != nil {
		return err
	}
	d.data = next
	return nil
}

// Delete drops key and persists. Deleting a missing key is a no-op.
func (d *Document) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.data[key]; !ok {
		return nil
	}
	next := maps.Clone(d.data)
	delete(next, key)
	if err := d.write(next); err != nil {
		return err
	}
	d.data = next
	return nil
}

// write replaces the file atomically: temp file in the same dir, fsync, rename.
func (d *Document) write(data map[string]Fields) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
