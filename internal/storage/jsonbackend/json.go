package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/shelf/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
	seen map[string]struct{}
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("ndjson: open %s: %w", filePath, err)
	}

	b := &jsonBackend{file: f, seen: make(map[string]struct{})}
	urls, err := b.readURLs()
	if err != nil {
		f.Close()
		return nil, err
	}
	for _, u := range urls {
		b.seen[u] = struct{}{}
	}
	return b, nil
}

func (b *jsonBackend) Save(ctx context.Context, p *storage.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("ndjson: marshal: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.seen[p.URL]; ok {
		return nil
	}
	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("ndjson: write: %w", err)
	}
	b.seen[p.URL] = struct{}{}
	return nil
}

func (b *jsonBackend) URLs(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readURLs()
}

func (b *jsonBackend) readURLs() ([]string, error) {
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ndjson: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var urls []string
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("ndjson: decode: %w", err)
		}
		if rec.URL != "" {
			urls = append(urls, rec.URL)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ndjson: scan: %w", err)
	}
	return urls, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
