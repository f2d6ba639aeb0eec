package resolver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/nftgp/http-gateway/internal/datauri"
	"github.com/nftgp/http-gateway/internal/errs"
	"github.com/nftgp/http-gateway/internal/fetcher"
	"github.com/nftgp/http-gateway/internal/ipfs"
	"github.com/nftgp/http-gateway/internal/metrics"
	"github.com/nftgp/http-gateway/internal/nfturi"
	"github.com/nftgp/http-gateway/internal/svg"
)

const (
	DefaultMaxHops = 8

	jsonMimeType = "application/json"

	// RFC 2397 default for data: URIs without a media type.
	defaultDataMimeType = "text/plain;charset=US-ASCII"
	sniffLen            = 512
)

type TokenURICaller interface {
	TokenURI(ctx context.Context, n *nfturi.NftURI) (string, error)
}

type Inliner interface {
	Inline(ctx context.Context, svg string) *svg.Result
}

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Asset is the terminal result of a resolution. The caller owns Body and must
// close it.
type Asset struct {
	ContentType string
	Body        io.ReadCloser
	// Size is -1 when unknown.
	Size      int64
	Warnings  []string
	Immutable bool
}

func newBytesAsset(contentType string, body []byte) *Asset {
	return &Asset{
		ContentType: contentType,
		Body:        io.NopCloser(bytes.NewReader(body)),
		Size:        int64(len(body)),
	}
}

type Config struct {
	Client  HttpClient
	Chain   TokenURICaller
	Gateway *ipfs.Gateway
	Inliner Inliner
	MaxHops int
	// MaxJSONSize caps metadata documents read into memory.
	MaxJSONSize int64
	Metrics     *metrics.Metrics
}

type Resolver struct {
	client      HttpClient
	chain       TokenURICaller
	gateway     *ipfs.Gateway
	inliner     Inliner
	maxHops     int
	maxJSONSize int64
	metrics     *metrics.Metrics
}

func New(cfg Config) *Resolver {
	r := &Resolver{
		client:      cfg.Client,
		chain:       cfg.Chain,
		gateway:     cfg.Gateway,
		inliner:     cfg.Inliner,
		maxHops:     cfg.MaxHops,
		maxJSONSize: cfg.MaxJSONSize,
		metrics:     cfg.Metrics,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.gateway == nil {
		r.gateway = ipfs.NewGateway("")
	}
	if r.maxHops <= 0 {
		r.maxHops = DefaultMaxHops
	}
	if r.maxJSONSize <= 0 {
		r.maxJSONSize = fetcher.DefaultMaxSize
	}
	return r
}

// ResolveNFT asks the token contract for its metadata URI and follows it to the
// token's asset.
func (r *Resolver) ResolveNFT(ctx context.Context, n *nfturi.NftURI) (*Asset, error) {
	tokenURI, err := r.chain.TokenURI(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token uri: %w", err)
	}
	tokenURI = strings.TrimSpace(tokenURI)
	if tokenURI == "" {
		return nil, errs.ErrEmptyTokenURI
	}

	slog.Debug("Resolved token uri", "nft", n.String(), "tokenURI", tokenURI)

	asset, err := r.Resolve(ctx, tokenURI)
	if err != nil {
		return nil, err
	}
	asset.Immutable = asset.Immutable && n.Pinned()
	return asset, nil
}

// Resolve follows uri across protocols. JSON metadata with an image or imageUrl
// field is followed to that target; any other JSON document is the asset.
func (r *Resolver) Resolve(ctx context.Context, uri string) (*Asset, error) {
	target := strings.TrimSpace(uri)
	for hop := 1; ; hop++ {
		if hop > r.maxHops {
			return nil, fmt.Errorf("%w: gave up after %d hops at %.128s", errs.ErrTooManyHops, r.maxHops, target)
		}

		slog.Debug("Resolving hop", "hop", hop, "target", target)

		asset, next, err := r.hop(ctx, target)
		if err != nil {
			return nil, err
		}
		if next == "" {
			r.metrics.ObserveHops(hop)
			return asset, nil
		}
		target = next
	}
}

// hop resolves a single target. It returns either the final asset or the next
// target to follow.
func (r *Resolver) hop(ctx context.Context, target string) (*Asset, string, error) {
	scheme, _, _ := strings.Cut(target, ":")
	switch strings.ToLower(scheme) {
	case "http", "https":
		return r.fetch(ctx, target)
	case "ipfs":
		gatewayURL, err := r.gateway.Rewrite(target)
		if errors.Is(err, errs.ErrInvalidCID) {
			return nil, "", err
		}
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", errs.ErrMetadataParse, err)
		}
		return r.fetch(ctx, gatewayURL)
	case "data":
		return r.decodeData(ctx, target)
	default:
		return nil, "", fmt.Errorf("%w: %.128s", errs.ErrUnsupportedProtocol, target)
	}
}

func (r *Resolver) decodeData(ctx context.Context, target string) (*Asset, string, error) {
	d, err := datauri.Decode(target)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrMetadataParse, err)
	}

	if isJSON(d.MimeType) {
		return unwrapMetadata(d.Data)
	}

	asset := DecodedAsset(ctx, r.inliner, d)
	return asset, "", nil
}

// DecodedAsset turns a decoded data: URI into an asset, inlining linked
// resources when it is an SVG document.
func DecodedAsset(ctx context.Context, inliner Inliner, d *datauri.DataURI) *Asset {
	if mediaType(d.MimeType) == svg.MimeType && inliner != nil {
		res := inliner.Inline(ctx, string(d.Data))
		asset := newBytesAsset(svg.MimeType, []byte(res.Body))
		asset.Warnings = res.Warnings
		asset.Immutable = len(res.Warnings) == 0
		return asset
	}

	mimeType := d.MimeType
	if mimeType == "" {
		mimeType = defaultDataMimeType
	}
	asset := newBytesAsset(mimeType, d.Data)
	asset.Immutable = true
	return asset
}

func (r *Resolver) fetch(ctx context.Context, url string) (*Asset, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrMetadataParse, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, "", fmt.Errorf("%w: %s", errs.ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("%w: %s returned %s", errs.ErrUpstream, url, resp.Status)
	}

	body := bufio.NewReader(resp.Body)
	if _, err := body.Peek(1); err != nil {
		resp.Body.Close()
		if errors.Is(err, io.EOF) {
			return nil, "", errs.ErrEmptyBody
		}
		return nil, "", fmt.Errorf("%w: reading %s: %w", errs.ErrTransport, url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		// Peek returns what is buffered even when the body is shorter.
		head, _ := body.Peek(sniffLen)
		contentType = http.DetectContentType(head)
	}
	if isJSON(contentType) {
		defer resp.Body.Close()
		raw, err := fetcher.ReadLimited(body, r.maxJSONSize, url)
		if err != nil {
			return nil, "", err
		}
		return unwrapMetadata(raw)
	}

	return &Asset{
		ContentType: contentType,
		Body: struct {
			io.Reader
			io.Closer
		}{body, resp.Body},
		Size: resp.ContentLength,
	}, "", nil
}

// unwrapMetadata follows the image (or imageUrl) field of ERC-721 style
// metadata. Metadata without either field is returned re-serialized.
func unwrapMetadata(raw []byte) (*Asset, string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrMetadataParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("%w: trailing data after metadata document", errs.ErrMetadataParse)
	}

	if meta, ok := doc.(map[string]interface{}); ok {
		for _, field := range []string{"image", "imageUrl"} {
			if next, ok := meta[field].(string); ok && strings.TrimSpace(next) != "" {
				return nil, strings.TrimSpace(next), nil
			}
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrMetadataParse, err)
	}
	return newBytesAsset(jsonMimeType, body), "", nil
}

func isJSON(contentType string) bool {
	return mediaType(contentType) == jsonMimeType
}

// mediaType strips parameters from a content type. Malformed parameters are
// tolerated as long as the type itself parses.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return ""
	}
	return mt
}
