package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/shelf/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu    sync.Mutex
	file  *os.File
	comma rune
	seen  map[string]struct{}
}

// New creates a tab-separated storage.Backend, the default output format.
func New(filePath string) (storage.Backend, error) {
	return open(filePath, '\t')
}

// NewComma creates a comma-separated storage.Backend.
func NewComma(filePath string) (storage.Backend, error) {
	return open(filePath, ',')
}

func open(filePath string, comma rune) (*csvBackend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", filePath, err)
	}

	b := &csvBackend{file: f, comma: comma, seen: make(map[string]struct{})}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: stat %s: %w", filePath, err)
	}

	if info.Size() == 0 {
		if err := b.write(storage.Columns); err != nil {
			f.Close()
			return nil, err
		}
		return b, nil
	}

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

func (b *csvBackend) Save(ctx context.Context, p *storage.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.seen[p.URL]; ok {
		return nil
	}
	if err := b.write(p.Row()); err != nil {
		return err
	}
	b.seen[p.URL] = struct{}{}
	return nil
}

func (b *csvBackend) URLs(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readURLs()
}

func (b *csvBackend) write(record []string) error {
	w := csv.NewWriter(b.file)
	w.Comma = b.comma
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csv: write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

// readURLs returns the url column of every data row. Callers hold mu.
func (b *csvBackend) readURLs() ([]string, error) {
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csv: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.Comma = b.comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	col := -1
	for i, name := range header {
		if name == "url" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("csv: %s has no url column", b.file.Name())
	}

	var urls []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read: %w", err)
		}
		if col < len(record) && record[col] != "" {
			urls = append(urls, record[col])
		}
	}
	return urls, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
