package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docpipe/internal/model"
)

func writeDocs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("document body"), 0o644))
	}
}

func TestCollectDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, "b.txt", "a.txt", "notes.md", "c.TXT")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	paths, err := collectDocuments(dir, 0)
	require.NoError(t, err)

	require.Len(t, paths, 3, "only .txt files, directories skipped")
	assert.Equal(t, filepath.Join(dir, "a.txt"), paths[0], "sorted order")
}

func TestCollectDocuments_Limit(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, "a.txt", "b.txt", "c.txt")

	paths, err := collectDocuments(dir, 2)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestCollectDocuments_MissingDir(t *testing.T) {
	_, err := collectDocuments("/nonexistent/dir", 0)
	assert.Error(t, err)
}

func TestProcessBatch_ContinuesPastFailures(t *testing.T) {
	var calls atomic.Int64

	err := processBatch(context.Background(), []string{"a", "b", "c"}, 2, func(_ context.Context, path string) (*model.Result, error) {
		calls.Add(1)
		if path == "b" {
			return nil, eris.New("provider down")
		}
		return &model.Result{RequestID: path}, nil
	})

	require.NoError(t, err, "individual failures do not abort the batch")
	assert.Equal(t, int64(3), calls.Load())
}

func TestProcessBatch_CancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	_ = processBatch(ctx, []string{"a", "b"}, 1, func(ctx context.Context, _ string) (*model.Result, error) {
		calls.Add(1)
		return nil, ctx.Err()
	})

	assert.LessOrEqual(t, calls.Load(), int64(2))
}
