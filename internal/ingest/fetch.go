package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Document is a fetched manuscript ready for splitting and storage.
type Document struct {
	SourceID string
	Title    string
	Text     string
}

// Fetcher resolves a source reference (file path or URL) to a document.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*Document, error)
}

// FileFetcher reads plain-text manuscripts from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, ref string) (*Document, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		abs = ref
	}
	return &Document{
		SourceID: "file:" + abs,
		Title:    titleFromName(filepath.Base(ref)),
		Text:     string(data),
	}, nil
}

// HTTPFetcher downloads manuscripts over HTTP(S).
type HTTPFetcher struct {
	Client *http.Client
}

const maxFetchBytes = 32 << 20

func (f HTTPFetcher) Fetch(ctx context.Context, ref string) (*Document, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", ref, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	title := ""
	if u, uerr := url.Parse(ref); uerr == nil && u.Path != "" {
		title = titleFromName(filepath.Base(u.Path))
	}
	return &Document{SourceID: ref, Title: title, Text: string(data)}, nil
}

// NewFetcher picks a fetcher for the reference: URLs go over HTTP,
// everything else is treated as a local path.
func NewFetcher(ref string) Fetcher {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return HTTPFetcher{}
	}
	return FileFetcher{}
}

func titleFromName(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}
