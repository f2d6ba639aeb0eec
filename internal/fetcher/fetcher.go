package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nftgp/http-gateway/internal/datauri"
	"github.com/nftgp/http-gateway/internal/errs"
	"github.com/nftgp/http-gateway/internal/ipfs"
	"github.com/nftgp/http-gateway/internal/metrics"
)

const (
	DefaultMaxSize = 2 << 20 // 2 MB

	chunkSize = 32 << 10
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads linked resources and re-encodes them as data: URIs,
// refusing anything larger than MaxSize.
type Fetcher struct {
	client  HttpClient
	gateway *ipfs.Gateway
	maxSize int64
	metrics *metrics.Metrics
}

func New(client HttpClient, gateway *ipfs.Gateway, maxSize int64, m *metrics.Metrics) *Fetcher {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Fetcher{
		client:  client,
		gateway: gateway,
		maxSize: maxSize,
		metrics: m,
	}
}

func (f *Fetcher) MaxSize() int64 {
	return f.maxSize
}

// Fetch returns the resource at url as data:<mime>;base64,<payload>.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, contentType, err := f.fetch(ctx, url)
	if err != nil {
		status := "error"
		if errors.Is(err, errs.ErrSizeLimit) {
			status = "size_limit"
		}
		f.metrics.ObserveFetch(status, 0)
		return "", err
	}
	f.metrics.ObserveFetch("ok", len(body))
	return datauri.Encode(body, contentType), nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, string, error) {
	target := url
	if ipfs.IsIPFS(url) {
		if f.gateway == nil {
			return nil, "", fmt.Errorf("%w: no ipfs gateway for %s", errs.ErrUnsupportedProtocol, url)
		}
		rewritten, err := f.gateway.Rewrite(url)
		if err != nil {
			return nil, "", err
		}
		target = rewritten
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: could not fetch %s: %v", errs.ErrTransport, url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: could not fetch %s: %w", errs.ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.StatusCode == http.StatusNoContent {
		return nil, "", fmt.Errorf("%w: could not fetch %s (%s)", errs.ErrTransport, url, resp.Status)
	}

	body, err := ReadLimited(resp.Body, f.maxSize, url)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	slog.Debug("Fetched linked resource", "url", url, "contentType", contentType, "size", len(body))
	return body, contentType, nil
}

// ReadLimited drains r chunk by chunk and aborts as soon as more than limit
// bytes have been received, without waiting for the stream to end.
func ReadLimited(r io.Reader, limit int64, url string) ([]byte, error) {
	var (
		result   []byte
		received int64
		chunk    = make([]byte, chunkSize)
	)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			received += int64(n)
			if received > limit {
				return nil, &errs.SizeLimitError{URL: url, Limit: limit}
			}
			result = append(result, chunk[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", errs.ErrTransport, url, err)
		}
	}
}
