package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/rabbitmq"
	"github.com/ffxxrr/orlamariecoach-sub000/internal/services"
)

type TrackHandler struct {
	ingestService *services.IngestService
}

func NewTrackHandler(ingestService *services.IngestService) *TrackHandler {
	return &TrackHandler{
		ingestService: ingestService,
	}
}

// Track handles POST /api/analytics/track. Validation failures return 400
// with a field-level error list and persist nothing.
func (h *TrackHandler) Track(c fiber.Ctx) error {
	var payload services.TrackPayload
	if err := c.Bind().JSON(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"details": []string{"invalid JSON body"},
		})
	}

	if details := payload.Validate(); len(details) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": details,
		})
	}

	ctx := context.Background()

	processed, err := h.ingestService.Ingest(ctx, &payload)
	if err != nil {
		log.Printf("Failed to ingest batch for visitor %s: %v", payload.VisitorInfo.VisitorID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to record analytics events",
		})
	}

	h.publishRollup(&payload)

	return c.JSON(fiber.Map{
		"success":   true,
		"processed": processed,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// publishRollup fans the batch out to the rollup queue. Best effort: a
// missing broker never degrades ingestion.
func (h *TrackHandler) publishRollup(payload *services.TrackPayload) {
	if rabbitmq.Client == nil {
		return
	}

	var paths []string
	for _, ev := range payload.Events {
		if ev.Type == "pageview" {
			paths = append(paths, ev.Data.Page)
		}
	}
	if len(paths) == 0 {
		return
	}

	msg := rabbitmq.RollupMessage{
		VisitorID: payload.VisitorInfo.VisitorID,
		Paths:     paths,
		Timestamp: time.Now().UTC(),
	}
	if err := rabbitmq.PublishRollup(msg); err != nil {
		log.Printf("Rollup publish skipped: %v", err)
	}
}
