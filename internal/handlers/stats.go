package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nftgp/http-gateway/internal/stats"
)

type StatsHandler struct {
	stats *stats.Recorder
}

func NewStatsHandler(recorder *stats.Recorder) *StatsHandler {
	return &StatsHandler{stats: recorder}
}

func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	snap, err := h.stats.Snapshot(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"enabled":  h.stats != nil,
		"requests": snap,
	})
}
