package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/weights.onnx", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("weights"))
	})
	mux.HandleFunc("/net.prototxt", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("net"))
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testCatalog(base string) []Model {
	return []Model{
		{Name: "one", Kind: KindDetector, Files: []File{{Name: "one.onnx", URL: base + "/weights.onnx", SHA256: sum("weights")}}},
		{Name: "pair", Kind: KindDetector, Files: []File{
			{Name: "pair.bin", URL: base + "/weights.onnx"},
			{Name: "pair.prototxt", URL: base + "/net.prototxt"},
		}},
		{Name: "bad", Kind: KindAge, Files: []File{{Name: "bad.onnx", URL: base + "/weights.onnx", SHA256: sum("other")}}},
		{Name: "manual", Kind: KindAge, Files: []File{{Name: "manual.onnx"}}},
		{Name: "missing", Kind: KindAge, Files: []File{{Name: "missing.onnx", URL: base + "/404"}}},
		{Name: "flaky", Kind: KindAge, Files: []File{{Name: "flaky.onnx", URL: base + "/flaky"}}},
	}
}

func newStore(t *testing.T, hits *atomic.Int32) *Store {
	srv := newServer(t, hits)
	return NewStore(t.TempDir(), WithCatalog(testCatalog(srv.URL)), WithHTTPClient(srv.Client()), WithRetry(2, 0))
}

func TestEnsureDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	s := newStore(t, &hits)

	path, err := s.Ensure(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "one.onnx"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	assert.True(t, s.Exists("one"))

	_, err = s.Ensure(context.Background(), "one")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "cached files are not fetched again")
}

func TestEnsureMultipleFiles(t *testing.T) {
	var hits atomic.Int32
	s := newStore(t, &hits)

	_, err := s.Ensure(context.Background(), "pair")
	require.NoError(t, err)

	paths, err := s.Paths("pair")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.FileExists(t, p)
	}
}

func TestEnsureErrors(t *testing.T) {
	var hits atomic.Int32
	s := newStore(t, &hits)
	ctx := context.Background()

	_, err := s.Ensure(ctx, "bad")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.False(t, s.Exists("bad"), "unverified files are not kept")

	_, err = s.Ensure(ctx, "manual")
	assert.ErrorIs(t, err, ErrNoDownload)

	_, err = s.Ensure(ctx, "missing")
	assert.ErrorIs(t, err, ErrDownload)

	_, err = s.Ensure(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestEnsureRetries(t *testing.T) {
	var hits atomic.Int32
	s := newStore(t, &hits)

	_, err := s.Ensure(context.Background(), "flaky")

	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestPull(t *testing.T) {
	var hits atomic.Int32
	s := newStore(t, &hits)

	require.NoError(t, s.Pull(context.Background(), "one", "pair"))
	assert.True(t, s.Exists("one"))
	assert.True(t, s.Exists("pair"))

	err := s.Pull(context.Background(), "one", "manual")
	assert.ErrorIs(t, err, ErrNoDownload)
}

func TestList(t *testing.T) {
	var hits atomic.Int32
	s := newStore(t, &hits)
	_, err := s.Ensure(context.Background(), "pair")
	require.NoError(t, err)

	list := s.List()

	require.Len(t, list, 6)
	byName := map[string]Status{}
	for _, st := range list {
		byName[st.Name] = st
	}
	assert.True(t, byName["pair"].Present)
	assert.EqualValues(t, len("weights")+len("net"), byName["pair"].Size)
	assert.False(t, byName["one"].Present)
}

func TestDefaultCatalog(t *testing.T) {
	c := NewCatalog(DefaultCatalog)
	for _, name := range []string{"yolo", "yunet", "ssd", "haar", "pigo"} {
		assert.Contains(t, c.ByKind(KindDetector), name)
	}
	assert.Equal(t, []string{"age-caffe", "age-vit"}, c.ByKind(KindAge))
	for _, m := range DefaultCatalog {
		assert.NotEmpty(t, m.Files, m.Name)
	}
}
