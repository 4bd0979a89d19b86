// Package coupon validates promotional codes against multiple code sets.
// A code is valid when it is 8-10 characters long and appears in at least
// two of the loaded sets.
package coupon

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	minCodeLength = 8
	maxCodeLength = 10

	// bloomFalsePositiveRate tunes the per-set filters. A miss in the
	// filter is definitive, so most invalid codes never touch the maps.
	bloomFalsePositiveRate = 0.001
)

// Validator validates coupon codes against multiple loaded code sets.
type Validator struct {
	mu   sync.RWMutex
	sets []*codeSet
}

// codeSet holds one loaded file: a bloom filter for the fast negative
// check, and the exact set behind it.
type codeSet struct {
	filter *bloom.BloomFilter
	codes  map[string]bool
}

func (cs *codeSet) contains(code string) bool {
	if !cs.filter.TestString(code) {
		return false
	}
	return cs.codes[code]
}

// loadResult holds the outcome of loading a single source.
type loadResult struct {
	index int
	set   *codeSet
	err   error
}

// NewValidator creates a coupon validator with no sets loaded. Until sets
// are loaded, every code is invalid.
func NewValidator() *Validator {
	return &Validator{}
}

// LoadFromURLs downloads and parses gzipped coupon files from the given
// URLs concurrently, replacing any previously loaded sets. It fails if any
// source fails to load.
func (v *Validator) LoadFromURLs(ctx context.Context, urls []string) error {
	return v.load(ctx, urls, v.fetchURL)
}

// LoadFromFiles reads coupon files from the local filesystem, gzipped or
// plain, replacing any previously loaded sets.
func (v *Validator) LoadFromFiles(ctx context.Context, paths []string) error {
	return v.load(ctx, paths, v.openFile)
}

func (v *Validator) load(ctx context.Context, sources []string, open func(ctx context.Context, src string) (io.ReadCloser, error)) error {
	if len(sources) == 0 {
		return fmt.Errorf("no coupon sources provided")
	}

	results := make(chan loadResult, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(index int, source string) {
			defer wg.Done()

			set, err := v.loadOne(ctx, source, open)
			results <- loadResult{index: index, set: set, err: err}
		}(i, src)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	loaded := make([]*codeSet, len(sources))
	for res := range results {
		if res.err != nil {
			return fmt.Errorf("failed to load coupon source %d: %w", res.index+1, res.err)
		}
		loaded[res.index] = res.set
	}

	v.mu.Lock()
	v.sets = loaded
	v.mu.Unlock()
	return nil
}

func (v *Validator) loadOne(ctx context.Context, source string, open func(ctx context.Context, src string) (io.ReadCloser, error)) (*codeSet, error) {
	rc, err := open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return parseCodes(rc)
}

// fetchURL downloads a gzipped coupon file over HTTP.
func (v *Validator) fetchURL(ctx context.Context, url string) (io.ReadCloser, error) {
	// Coupon dumps run to hundreds of megabytes.
	client := &http.Client{Timeout: 5 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return &gzipBody{Reader: gz, body: resp.Body}, nil
}

// openFile opens a local coupon file, transparently decompressing .gz.
func (v *Validator) openFile(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return &gzipBody{Reader: gz, body: f}, nil
}

// gzipBody closes both the gzip reader and the underlying stream.
type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipBody) Close() error {
	err := g.Reader.Close()
	if cerr := g.body.Close(); err == nil {
		err = cerr
	}
	return err
}

// parseCodes reads one code per line and builds the exact set plus its
// bloom filter.
func parseCodes(r io.Reader) (*codeSet, error) {
	codes := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			codes[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	n := uint(len(codes))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, bloomFalsePositiveRate)
	for code := range codes {
		filter.AddString(code)
	}

	return &codeSet{filter: filter, codes: codes}, nil
}

// IsValid checks if a coupon code is valid: 8-10 characters and present in
// at least two of the loaded sets.
func (v *Validator) IsValid(ctx context.Context, code string) bool {
	if len(code) < minCodeLength || len(code) > maxCodeLength {
		return false
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	hits := 0
	for _, set := range v.sets {
		if set.contains(code) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}

// GetStats returns statistics about the loaded coupon sets.
func (v *Validator) GetStats() map[string]interface{} {
	v.mu.RLock()
	defer v.mu.RUnlock()

	sizes := make([]int, len(v.sets))
	total := 0
	for i, set := range v.sets {
		sizes[i] = len(set.codes)
		total += len(set.codes)
	}

	return map[string]interface{}{
		"total_files":   len(v.sets),
		"file_sizes":    sizes,
		"total_coupons": total,
	}
}
