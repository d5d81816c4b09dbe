package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/sattrack/internal/record"
)

func sampleStore(t *testing.T) *record.Store {
	t.Helper()
	s, err := record.Load([]byte(`[{"id":"25544","satname":"SPACE STATION","status":1,"location":{"lat":1,"lon":2},"history":[{"lat":1,"lon":2,"t":3}]},{"id":"X"}]`))
	require.NoError(t, err)
	return s
}

func TestLoadMissingFile(t *testing.T) {
	f := NewFile(Config{Path: filepath.Join(t.TempDir(), "data.json")})

	s, err := f.Load()
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0644))

	s, err := NewFile(Config{Path: path}).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, record.ErrNotArray)
	require.NotNil(t, s)
	assert.Zero(t, s.Len())
}

func TestLoadUnreadableFile(t *testing.T) {
	// A directory at the store path exists but cannot be read as a file.
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.Mkdir(path, 0755))

	s, err := NewFile(Config{Path: path}).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.Nil(t, s)
}

func TestSnapshotUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.Mkdir(path, 0755))
	snap := NewSnapshot(NewFile(Config{Path: path}))

	for i := 0; i < 2; i++ {
		s, err := snap.Get()
		assert.ErrorIs(t, err, ErrUnreadable)
		assert.Nil(t, s)
	}
	assert.True(t, snap.LoadedAt().IsZero())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	f := NewFile(Config{Path: path})

	require.NoError(t, f.Save(sampleStore(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	s, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	r, ok := s.Get("25544")
	require.True(t, ok)
	assert.Equal(t, "SPACE STATION", r.Name())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveIndent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	f := NewFile(Config{Path: path, Indent: true})
	require.NoError(t, f.Save(sampleStore(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n")
}

func TestSaveUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "data.json")
	err := NewFile(Config{Path: path}).Save(sampleStore(t))
	require.Error(t, err)
}

func TestSaveKeepsBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	backups := filepath.Join(dir, "backups")

	f := NewFile(Config{Path: path, BackupDir: backups, MaxBackups: 2})
	clock := time.Unix(1700000000, 0)
	f.now = func() time.Time { return clock }

	// First save has nothing to back up.
	require.NoError(t, f.Save(sampleStore(t)))
	names, err := f.Backups()
	require.NoError(t, err)
	assert.Empty(t, names)

	for i := 1; i <= 3; i++ {
		clock = clock.Add(time.Minute)
		require.NoError(t, f.Save(sampleStore(t)))
	}

	names, err = f.Backups()
	require.NoError(t, err)
	assert.Equal(t, []string{"store_1700000120.json", "store_1700000180.json"}, names)

	// Unrelated files are ignored by pruning.
	require.NoError(t, os.WriteFile(filepath.Join(backups, "notes.txt"), []byte("x"), 0644))
	clock = clock.Add(time.Minute)
	require.NoError(t, f.Save(sampleStore(t)))
	_, err = os.Stat(filepath.Join(backups, "notes.txt"))
	assert.NoError(t, err)
}

func TestSnapshotReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	f := NewFile(Config{Path: path})
	snap := NewSnapshot(f)

	s, err := snap.Get()
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	require.NoError(t, f.Save(sampleStore(t)))
	// Force a distinct mtime regardless of filesystem timestamp resolution.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	s, err = snap.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	again, err := snap.Get()
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.False(t, snap.LoadedAt().IsZero())
}
