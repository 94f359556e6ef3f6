package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/middleware"
	"github.com/ffxxrr/orlamariecoach-sub000/internal/services"
)

type ConsentHandler struct {
	consentService    *services.ConsentService
	dataRightsService *services.DataRightsService
}

func NewConsentHandler(consentService *services.ConsentService, dataRightsService *services.DataRightsService) *ConsentHandler {
	return &ConsentHandler{
		consentService:    consentService,
		dataRightsService: dataRightsService,
	}
}

// ConsentPayload is the POST /api/analytics/consent body.
type ConsentPayload struct {
	VisitorID    string `json:"visitorId"`
	HasConsented bool   `json:"hasConsented"`
	ConsentType  string `json:"consentType"`
	Timestamp    string `json:"timestamp"`
}

// Record handles POST /api/analytics/consent
func (h *ConsentHandler) Record(c fiber.Ctx) error {
	var payload ConsentPayload
	if err := c.Bind().JSON(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid request body",
		})
	}

	if payload.VisitorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "visitorId is required",
		})
	}

	consentDate := time.Now().UTC()
	if payload.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
			consentDate = t.UTC()
		}
	}

	// Only an anonymized IP is ever stored, for audit purposes.
	anonymizedIP := services.AnonymizeIP(middleware.GetRealIP(c))

	ctx := context.Background()
	if err := h.consentService.Record(ctx, payload.VisitorID, payload.HasConsented, payload.ConsentType, consentDate, anonymizedIP); err != nil {
		log.Printf("Failed to record consent for visitor %s: %v", payload.VisitorID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to record consent",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Consent recorded",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Get handles GET /api/analytics/consent?visitorId=
func (h *ConsentHandler) Get(c fiber.Ctx) error {
	visitorID := c.Query("visitorId")
	if visitorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "visitorId query parameter is required",
		})
	}

	record, err := h.consentService.Get(context.Background(), visitorID)
	if err != nil {
		log.Printf("Failed to read consent for visitor %s: %v", visitorID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to read consent",
		})
	}

	// Absence implies no consent.
	if record == nil {
		return c.JSON(fiber.Map{
			"hasConsented": false,
		})
	}

	return c.JSON(fiber.Map{
		"hasConsented": record.HasConsented,
		"consentType":  record.ConsentType,
		"consentDate":  record.ConsentDate.UTC().Format(time.RFC3339),
	})
}

// DataRightsPayload is the DELETE /api/analytics/consent body.
type DataRightsPayload struct {
	VisitorID   string `json:"visitorId"`
	RequestType string `json:"requestType"`
}

// DataRights handles DELETE /api/analytics/consent with requestType
// delete, export, or anonymize. Each request runs in one transaction.
func (h *ConsentHandler) DataRights(c fiber.Ctx) error {
	var payload DataRightsPayload
	if err := c.Bind().JSON(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid request body",
		})
	}

	if payload.VisitorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "visitorId is required",
		})
	}

	ctx := context.Background()

	switch payload.RequestType {
	case "delete":
		counts, err := h.dataRightsService.Delete(ctx, payload.VisitorID)
		if err != nil {
			log.Printf("Erasure failed for visitor %s: %v", payload.VisitorID, err)
			return dataRightsError(c)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"deleted": counts,
		})

	case "export":
		doc, err := h.dataRightsService.Export(ctx, payload.VisitorID)
		if err != nil {
			log.Printf("Export failed for visitor %s: %v", payload.VisitorID, err)
			return dataRightsError(c)
		}
		return c.JSON(doc)

	case "anonymize":
		anonymizedID, err := h.dataRightsService.Anonymize(ctx, payload.VisitorID)
		if err != nil {
			log.Printf("Anonymization failed for visitor %s: %v", payload.VisitorID, err)
			return dataRightsError(c)
		}
		return c.JSON(fiber.Map{
			"success":      true,
			"anonymizedId": anonymizedID,
		})

	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "requestType must be delete, export, or anonymize",
		})
	}
}

func dataRightsError(c fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal Server Error",
		"message": "Data rights request failed; no partial changes were kept",
	})
}
