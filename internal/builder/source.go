package builder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DefaultResponseHeaderTimeout is the default timeout for receiving response headers.
const DefaultResponseHeaderTimeout = 30 * time.Second

// Source opens evaluation dumps from local files, standard input or HTTP.
type Source struct {
	client *http.Client
	stdin  io.Reader
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *Source) {
		s.client = client
	}
}

// NewSource creates a Source with sensible defaults.
func NewSource(opts ...SourceOption) *Source {
	s := &Source{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		},
		stdin: os.Stdin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns the decompressed content of name: an http(s) URL, "-" for
// standard input, or a file path. Names ending in .zst or .gz are
// decompressed.
func (s *Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	switch {
	case strings.HasPrefix(name, "http://"), strings.HasPrefix(name, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("downloading: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %s", resp.Status)
		}
		rc = resp.Body
	case name == "-":
		rc = io.NopCloser(s.stdin)
	default:
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("opening source file: %w", err)
		}
		rc = f
	}
	return decompress(rc, name)
}

func decompress(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".zst"):
		dec, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return &stacked{r: dec, closers: []func() error{func() error { dec.Close(); return nil }, rc.Close}}, nil
	case strings.HasSuffix(name, ".gz"):
		dec, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("creating gzip decoder: %w", err)
		}
		return &stacked{r: dec, closers: []func() error{dec.Close, rc.Close}}, nil
	}
	return rc, nil
}

// stacked reads from a decoder and closes it before the underlying stream.
type stacked struct {
	r       io.Reader
	closers []func() error
}

func (s *stacked) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
