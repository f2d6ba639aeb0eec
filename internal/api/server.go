package api

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nftgp/http-gateway/internal/chain"
	"github.com/nftgp/http-gateway/internal/config"
	"github.com/nftgp/http-gateway/internal/fetcher"
	"github.com/nftgp/http-gateway/internal/handlers"
	"github.com/nftgp/http-gateway/internal/ipfs"
	"github.com/nftgp/http-gateway/internal/metrics"
	"github.com/nftgp/http-gateway/internal/resolver"
	"github.com/nftgp/http-gateway/internal/stats"
	"github.com/nftgp/http-gateway/internal/svg"
	"github.com/prometheus/client_golang/prometheus"
)

func NewServer(cfg *config.Config, recorder *stats.Recorder) (*fiber.App, error) {
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	readBufferSize := cfg.MaxURISize
	if readBufferSize <= 0 {
		readBufferSize = config.DefaultMaxURISize
	}

	app := fiber.New(fiber.Config{
		AppName:        "nftgp-http-gateway",
		ReadBufferSize: readBufferSize,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	gateway := ipfs.NewGateway(cfg.IPFSGateway)

	caller := chain.NewCaller(httpClient, cfg.RPCEndpoints, m)
	inliner := svg.NewInliner(fetcher.New(httpClient, gateway, cfg.MaxResourceSize, m), m)
	res := resolver.New(resolver.Config{
		Client:      httpClient,
		Chain:       caller,
		Gateway:     gateway,
		Inliner:     inliner,
		MaxHops:     cfg.MaxHops,
		MaxJSONSize: cfg.MaxResourceSize,
		Metrics:     m,
	})

	gatewayHandler := handlers.NewGatewayHandler(res, inliner, recorder, m, cfg.RequestTimeout)
	statsHandler := handlers.NewStatsHandler(recorder)

	setupRoutes(app, registry, gatewayHandler, statsHandler)

	return app, nil
}
