package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/models"
)

// ConsentService stores and reads consent decisions.
type ConsentService struct {
	db *bun.DB
}

func NewConsentService(db *bun.DB) *ConsentService {
	return &ConsentService{db: db}
}

// Record upserts the consent decision for a visitor. The caller IP must
// already be anonymized before it reaches this method.
func (s *ConsentService) Record(ctx context.Context, visitorID string, hasConsented bool, consentType string, consentDate time.Time, anonymizedIP string) error {
	record := &models.ConsentRecord{
		VisitorID:    visitorID,
		HasConsented: hasConsented,
		ConsentType:  consentType,
		ConsentDate:  consentDate,
	}
	if anonymizedIP != "" {
		record.AnonymizedIP = &anonymizedIP
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (visitor_id) DO UPDATE").
		Set("has_consented = EXCLUDED.has_consented").
		Set("consent_type = EXCLUDED.consent_type").
		Set("consent_date = EXCLUDED.consent_date").
		Set("anonymized_ip = EXCLUDED.anonymized_ip").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Get returns the consent record for a visitor, or nil when none exists.
// Absence implies no consent.
func (s *ConsentService) Get(ctx context.Context, visitorID string) (*models.ConsentRecord, error) {
	record := new(models.ConsentRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("visitor_id = ?", visitorID).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
