package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/services"
)

type StatsHandler struct {
	statsService *services.StatsService
}

func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
	}
}

// parseWindow reads optional from/to query parameters (RFC3339).
// Defaults to the last 30 days.
func parseWindow(c fiber.Ctx) (time.Time, time.Time, error) {
	from := time.Now().UTC().Add(-30 * 24 * time.Hour)
	to := time.Now().UTC()

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, fmt.Errorf("invalid 'from' timestamp, use RFC3339")
		}
		from = t.UTC()
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, fmt.Errorf("invalid 'to' timestamp, use RFC3339")
		}
		to = t.UTC()
	}

	return from, to, nil
}

// Pages handles GET /api/admin/stats/pages
func (h *StatsHandler) Pages(c fiber.Ctx) error {
	from, to, err := parseWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	}

	stats, err := h.statsService.PageStats(context.Background(), from, to)
	if err != nil {
		log.Printf("Failed to query page stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve page statistics",
		})
	}

	return c.JSON(fiber.Map{
		"from":  from.Format(time.RFC3339),
		"to":    to.Format(time.RFC3339),
		"pages": stats,
	})
}

// Overview handles GET /api/admin/stats/overview
func (h *StatsHandler) Overview(c fiber.Ctx) error {
	from, to, err := parseWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	}

	overview, err := h.statsService.Overview(context.Background(), from, to)
	if err != nil {
		log.Printf("Failed to query overview stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve overview statistics",
		})
	}

	return c.JSON(overview)
}

// Export handles GET /api/admin/stats/export and returns an xlsx workbook.
func (h *StatsHandler) Export(c fiber.Ctx) error {
	from, to, err := parseWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	}

	data, err := h.statsService.ExportPageStatsXLSX(context.Background(), from, to)
	if err != nil {
		log.Printf("Failed to export stats workbook: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to export statistics",
		})
	}

	filename := fmt.Sprintf("page-stats-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Send(data)
}
