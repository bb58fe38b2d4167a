package workspace

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStableUnderLanguageOrder(t *testing.T) {
	a := Fingerprint("/repo", []string{"go", "python"})
	b := Fingerprint("/repo", []string{"python", "go"})
	require.Equal(t, a, b)
}

func TestFingerprintDiffersOnRootOrLanguages(t *testing.T) {
	base := Fingerprint("/repo", []string{"go"})
	require.NotEqual(t, base, Fingerprint("/other", []string{"go"}))
	require.NotEqual(t, base, Fingerprint("/repo", []string{"go", "rust"}))
}

func TestWriteMetaThenReadMetaRoundTrips(t *testing.T) {
	fs := memfs.New()
	m := Meta{SchemaVersion: SchemaVersion, CreatedAt: 1234, WorkspaceFingerprint: "abc"}
	require.NoError(t, writeMeta(fs, m))

	got, err := readMeta(fs)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestReadMetaMissingFileErrors(t *testing.T) {
	fs := memfs.New()
	_, err := readMeta(fs)
	require.Error(t, err)
}

func TestOpenFreshStoreRequiresRebuild(t *testing.T) {
	dir := t.TempDir() + "/store"
	w, err := Open("/repo", dir, []string{"go"}, 100)
	require.NoError(t, err)
	defer w.Close()

	require.True(t, w.RebuildRequired)
	require.Equal(t, SchemaVersion, w.Meta.SchemaVersion)
	require.Equal(t, Fingerprint("/repo", []string{"go"}), w.Meta.WorkspaceFingerprint)
}

func TestOpenTwiceWithSameFingerprintSkipsRebuild(t *testing.T) {
	dir := t.TempDir() + "/store"
	w1, err := Open("/repo", dir, []string{"go"}, 100)
	require.NoError(t, err)
	require.NoError(t, w1.Close())

	w2, err := Open("/repo", dir, []string{"go"}, 200)
	require.NoError(t, err)
	defer w2.Close()

	require.False(t, w2.RebuildRequired)
	require.Equal(t, int64(100), w2.Meta.CreatedAt)
}

func TestOpenWithDifferentLanguagesTriggersRebuild(t *testing.T) {
	dir := t.TempDir() + "/store"
	w1, err := Open("/repo", dir, []string{"go"}, 100)
	require.NoError(t, err)
	require.NoError(t, w1.Close())

	w2, err := Open("/repo", dir, []string{"go", "rust"}, 200)
	require.NoError(t, err)
	defer w2.Close()

	require.True(t, w2.RebuildRequired)
	require.Equal(t, int64(200), w2.Meta.CreatedAt)
}

func TestSecondOpenDegradesLockGracefully(t *testing.T) {
	dir := t.TempDir() + "/store"
	w1, err := Open("/repo", dir, []string{"go"}, 100)
	require.NoError(t, err)
	defer w1.Close()

	w2, err := Open("/repo", dir, []string{"go"}, 200)
	require.NoError(t, err)
	defer w2.Close()

	require.True(t, w1.Lock.Locked)
	require.False(t, w2.Lock.Locked)
}
