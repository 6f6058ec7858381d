package transcript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, dir, videoID, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, videoID+".json"), []byte(body), 0o644))
}

func TestFileSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "flat", `[{"text":"hi","start":0,"duration":1.5},{"text":"there","start":1.5,"duration":2}]`)
	writeTranscript(t, dir, "nested", `[[{"text":"a","start":0,"duration":1}],[{"text":"b","start":1,"duration":1}]]`)
	writeTranscript(t, dir, "empty", `[]`)
	writeTranscript(t, dir, "broken", `{not json`)

	src := NewFileSource(dir)
	ctx := context.Background()

	got, err := src.Fetch(ctx, "flat")
	require.NoError(t, err)
	assert.Equal(t, []Snippet{{Text: "hi", Start: 0, Duration: 1.5}, {Text: "there", Start: 1.5, Duration: 2}}, got)

	got, err = src.Fetch(ctx, "nested")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = src.Fetch(ctx, "empty")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(ctx, "../etc/passwd")
	assert.Error(t, err)
}

type stubSource struct {
	snippets []Snippet
	err      error
	calls    int
}

func (s *stubSource) Fetch(context.Context, string) ([]Snippet, error) {
	s.calls++
	return s.snippets, s.err
}

func TestChainSource(t *testing.T) {
	ctx := context.Background()
	found := []Snippet{{Text: "x"}}

	t.Run("first hit wins", func(t *testing.T) {
		miss := &stubSource{err: ErrNotFound}
		hit := &stubSource{snippets: found}
		after := &stubSource{snippets: []Snippet{{Text: "unused"}}}

		got, err := NewChainSource(miss, nil, hit, after).Fetch(ctx, "vid")
		require.NoError(t, err)
		assert.Equal(t, found, got)
		assert.Equal(t, 0, after.calls)
	})

	t.Run("all miss", func(t *testing.T) {
		_, err := NewChainSource(&stubSource{err: ErrNotFound}).Fetch(ctx, "vid")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("hard error stops chain", func(t *testing.T) {
		boom := errors.New("boom")
		next := &stubSource{snippets: found}

		_, err := NewChainSource(&stubSource{err: boom}, next).Fetch(ctx, "vid")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, next.calls)
	})
}
