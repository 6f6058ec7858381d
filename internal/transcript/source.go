package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource reads transcripts stored as <dir>/<videoID>.json, each file a
// JSON array of snippets.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (f *FileSource) Fetch(ctx context.Context, videoID string) ([]Snippet, error) {
	if strings.ContainsAny(videoID, `/\`) || strings.Contains(videoID, "..") {
		return nil, fmt.Errorf("invalid video id %q", videoID)
	}

	data, err := os.ReadFile(filepath.Join(f.dir, videoID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read transcript file: %w", err)
	}

	snippets, err := decodeSnippets(data)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		return nil, ErrNotFound
	}
	return snippets, nil
}

// ChainSource asks each source in turn and returns the first transcript
// found. Errors other than ErrNotFound stop the chain.
type ChainSource struct {
	sources []Source
}

func NewChainSource(sources ...Source) *ChainSource {
	return &ChainSource{sources: sources}
}

func (c *ChainSource) Fetch(ctx context.Context, videoID string) ([]Snippet, error) {
	for _, src := range c.sources {
		if src == nil {
			continue
		}
		snippets, err := src.Fetch(ctx, videoID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return snippets, nil
	}
	return nil, ErrNotFound
}

// decodeSnippets accepts either a flat array of snippets or the nested
// array-per-video layout written by the youtube_transcript_api CLI.
func decodeSnippets(data []byte) ([]Snippet, error) {
	var flat []Snippet
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, nil
	}

	var nested [][]Snippet
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("cannot parse transcript JSON: %w", err)
	}
	var out []Snippet
	for _, group := range nested {
		out = append(out, group...)
	}
	return out, nil
}
