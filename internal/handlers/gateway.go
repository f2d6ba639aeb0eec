package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nftgp/http-gateway/internal/datauri"
	"github.com/nftgp/http-gateway/internal/errs"
	"github.com/nftgp/http-gateway/internal/metrics"
	"github.com/nftgp/http-gateway/internal/nfturi"
	"github.com/nftgp/http-gateway/internal/resolver"
	"github.com/nftgp/http-gateway/internal/stats"
)

const (
	nftPrefix  = "/nft:"
	dataPrefix = "/data:"

	immutableCacheControl = "public, max-age=31536000, immutable"
	warningHeader         = "X-Warning"
)

type NFTResolver interface {
	ResolveNFT(ctx context.Context, n *nfturi.NftURI) (*resolver.Asset, error)
}

type GatewayHandler struct {
	resolver NFTResolver
	inliner  resolver.Inliner
	stats    *stats.Recorder
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewGatewayHandler(r NFTResolver, inliner resolver.Inliner, recorder *stats.Recorder, m *metrics.Metrics, timeout time.Duration) *GatewayHandler {
	return &GatewayHandler{
		resolver: r,
		inliner:  inliner,
		stats:    recorder,
		metrics:  m,
		timeout:  timeout,
	}
}

// HandleAll dispatches on the path prefix. Anything other than nft: and
// data: paths is rejected.
func (h *GatewayHandler) HandleAll(c *fiber.Ctx) error {
	path := c.Path()
	switch {
	case strings.HasPrefix(path, nftPrefix):
		return h.GetNFT(c)
	case strings.HasPrefix(path, dataPrefix):
		return h.GetData(c)
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unsupported route",
		})
	}
}

func (h *GatewayHandler) GetNFT(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodGet {
		return methodNotAllowed(c)
	}

	n, err := nfturi.Parse(rawURI(c))
	if err != nil {
		return h.fail(c, "nft", 0, err)
	}

	ctx, cancel := h.requestContext(c)
	asset, err := h.resolver.ResolveNFT(ctx, n)
	if err != nil {
		cancel()
		return h.fail(c, "nft", n.ChainID, err)
	}

	h.record(c, "nft", n.ChainID, stats.OutcomeResolved, fiber.StatusOK)
	return sendAsset(c, asset, cancel)
}

func (h *GatewayHandler) GetData(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodGet {
		return methodNotAllowed(c)
	}

	d, err := datauri.Decode(rawURI(c))
	if err != nil {
		return h.fail(c, "data", 0, err)
	}

	ctx, cancel := h.requestContext(c)
	asset := resolver.DecodedAsset(ctx, h.inliner, d)

	h.record(c, "data", 0, stats.OutcomeResolved, fiber.StatusOK)
	return sendAsset(c, asset, cancel)
}

func (h *GatewayHandler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.timeout)
}

func (h *GatewayHandler) fail(c *fiber.Ctx, route string, chainID uint64, err error) error {
	status := statusFor(err)
	h.record(c, route, chainID, outcomeFor(err), status)

	if status == fiber.StatusNoContent {
		slog.Debug("No content", "route", route, "reason", err)
		return c.SendStatus(status)
	}

	slog.Warn("Request failed", "route", route, "chain", chainID, "status", status, "error", err)
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (h *GatewayHandler) record(c *fiber.Ctx, route string, chainID uint64, outcome string, status int) {
	h.metrics.ObserveRequest(route, strconv.Itoa(status))
	h.stats.Record(c.UserContext(), route, chainID, outcome)
}

func sendAsset(c *fiber.Ctx, asset *resolver.Asset, cancel context.CancelFunc) error {
	if asset.ContentType != "" {
		c.Set(fiber.HeaderContentType, asset.ContentType)
	}
	if asset.Immutable && len(asset.Warnings) == 0 {
		c.Set(fiber.HeaderCacheControl, immutableCacheControl)
	}
	for _, w := range asset.Warnings {
		c.Response().Header.Add(warningHeader, w)
	}

	// The body may still be streaming from its origin after the handler
	// returns, so the request context lives until the body is closed.
	body := &cancelOnClose{ReadCloser: asset.Body, cancel: cancel}
	if asset.Size >= 0 {
		return c.SendStream(body, int(asset.Size))
	}
	return c.SendStream(body)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// rawURI rebuilds the URI carried in the request path, keeping its original
// escaping.
func rawURI(c *fiber.Ctx) string {
	uri := strings.TrimPrefix(c.Path(), "/")
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		uri += "?" + string(q)
	}
	return uri
}

func methodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, fiber.MethodGet)
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
		"error": "only GET allowed",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrParse), errors.Is(err, errs.ErrUnknownChain):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errs.IsNoContent(err):
		return fiber.StatusNoContent
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return stats.OutcomeNotFound
	case errs.IsNoContent(err):
		return stats.OutcomeEmpty
	default:
		return stats.OutcomeError
	}
}
