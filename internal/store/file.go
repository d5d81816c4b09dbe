// Package store persists the record store to a single JSON file.
//
// The file is fully rewritten on every save through a temp file and rename,
// so readers never observe a partial store. When a backup directory is
// configured the previous file is kept as store_<unix>.json and at most
// MaxBackups such copies are retained.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/star/sattrack/internal/record"
)

// Config holds persistence configuration loaded from environment variables.
type Config struct {
	Path       string // Store file (default: data.json)
	BackupDir  string // Where previous versions are kept (default: none)
	MaxBackups int    // Backups retained (default: 5)
	Indent     bool   // Pretty-print the file
}

// File reads and writes the store file.
type File struct {
	config Config
	now    func() time.Time
}

// NewFile creates a File for the given configuration.
func NewFile(config Config) *File {
	if config.Path == "" {
		config.Path = "data.json"
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 5
	}
	return &File{config: config, now: time.Now}
}

// Path returns the store file path.
func (f *File) Path() string {
	return f.config.Path
}

// ErrUnreadable is returned by Load when the store file exists but cannot
// be read. Starting empty would overwrite the file on the next save.
var ErrUnreadable = errors.New("store file unreadable")

// Load reads the store. A missing file yields an empty store and no error.
// A corrupt file yields an empty store and an error that callers should
// report as a warning. A file that exists but cannot be read yields a nil
// store and an error wrapping ErrUnreadable.
func (f *File) Load() (*record.Store, error) {
	data, err := os.ReadFile(f.config.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return record.NewStore(), nil
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	s, err := record.Load(data)
	if err != nil {
		return s, fmt.Errorf("loading %s: %w", f.config.Path, err)
	}
	return s, nil
}

// Save serializes s and replaces the store file. Serialization and write
// errors are returned; the existing file is left untouched on failure.
func (f *File) Save(s *record.Store) error {
	data, err := record.Marshal(s, f.config.Indent)
	if err != nil {
		return fmt.Errorf("serializing store: %w", err)
	}

	if f.config.BackupDir != "" {
		if err := f.backup(); err != nil {
			return err
		}
	}

	dir := filepath.Dir(f.config.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.config.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing store file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting store file mode: %w", err)
	}
	if err := os.Rename(tmpName, f.config.Path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}

	return nil
}

// backup copies the current store file into the backup directory.
func (f *File) backup() error {
	data, err := os.ReadFile(f.config.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading store for backup: %w", err)
	}

	if err := os.MkdirAll(f.config.BackupDir, 0755); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}

	name := fmt.Sprintf("store_%d.json", f.now().Unix())
	if err := os.WriteFile(filepath.Join(f.config.BackupDir, name), data, 0644); err != nil {
		return fmt.Errorf("writing backup file: %w", err)
	}

	return f.prune()
}

type backupFile struct {
	name string
	ts   time.Time
}

// Backups lists backup files oldest first.
func (f *File) Backups() ([]string, error) {
	files, err := f.listBackups()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, b := range files {
		names[i] = b.name
	}
	return names, nil
}

func (f *File) listBackups() ([]backupFile, error) {
	entries, err := os.ReadDir(f.config.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backup dir: %w", err)
	}

	var files []backupFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "store_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, "store_"), ".json")
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, backupFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (f *File) prune() error {
	files, err := f.listBackups()
	if err != nil {
		return err
	}

	if len(files) <= f.config.MaxBackups {
		return nil
	}

	// Remove oldest files.
	for _, b := range files[:len(files)-f.config.MaxBackups] {
		if err := os.Remove(filepath.Join(f.config.BackupDir, b.name)); err != nil {
			return fmt.Errorf("pruning backup file %s: %w", b.name, err)
		}
	}

	return nil
}
