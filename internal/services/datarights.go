package services

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/models"
)

// RetentionStatement is included verbatim in every data export.
const RetentionStatement = "Analytics data is retained for a maximum of 26 months. " +
	"You may request deletion or anonymization of this data at any time via the " +
	"same endpoint that produced this export. Processing is based on your " +
	"recorded consent; withdrawing consent stops all further collection."

// DataRightsService implements the GDPR delete/export/anonymize requests.
// Each request runs inside a single transaction so a failure never leaves
// partial state behind.
type DataRightsService struct {
	db *bun.DB
}

func NewDataRightsService(db *bun.DB) *DataRightsService {
	return &DataRightsService{db: db}
}

// DeleteCounts reports per-table deleted rows from a hard erasure.
type DeleteCounts struct {
	Events    int64 `json:"events"`
	PageViews int64 `json:"pageViews"`
	Sessions  int64 `json:"sessions"`
	Consent   int64 `json:"consentRecords"`
	Visitors  int64 `json:"visitors"`
	TotalRows int64 `json:"totalRows"`
}

// Delete removes every row belonging to visitorID across all tables.
func (s *DataRightsService) Delete(ctx context.Context, visitorID string) (*DeleteCounts, error) {
	counts := &DeleteCounts{}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		steps := []struct {
			model interface{}
			out   *int64
		}{
			{(*models.Event)(nil), &counts.Events},
			{(*models.PageView)(nil), &counts.PageViews},
			{(*models.Session)(nil), &counts.Sessions},
			{(*models.ConsentRecord)(nil), &counts.Consent},
			{(*models.Visitor)(nil), &counts.Visitors},
		}

		for _, step := range steps {
			res, err := tx.NewDelete().
				Model(step.model).
				Where("visitor_id = ?", visitorID).
				Exec(ctx)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			*step.out = n
		}

		counts.TotalRows = counts.Events + counts.PageViews + counts.Sessions +
			counts.Consent + counts.Visitors
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete visitor data: %w", err)
	}

	return counts, nil
}

// ExportDocument is the portable record of everything stored for a visitor.
type ExportDocument struct {
	VisitorID  string                `json:"visitorId"`
	ExportedAt time.Time             `json:"exportedAt"`
	Rights     string                `json:"rightsStatement"`
	Visitor    *models.Visitor       `json:"visitor,omitempty"`
	Consent    *models.ConsentRecord `json:"consent,omitempty"`
	Sessions   []models.Session      `json:"sessions"`
	PageViews  []models.PageView     `json:"pageViews"`
	Events     []models.Event        `json:"events"`
	RowCounts  map[string]int        `json:"rowCounts"`
}

// Export reads and serializes every row stored for visitorID.
func (s *DataRightsService) Export(ctx context.Context, visitorID string) (*ExportDocument, error) {
	doc := &ExportDocument{
		VisitorID:  visitorID,
		ExportedAt: time.Now().UTC(),
		Rights:     RetentionStatement,
		Sessions:   []models.Session{},
		PageViews:  []models.PageView{},
		Events:     []models.Event{},
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		visitor := new(models.Visitor)
		err := tx.NewSelect().Model(visitor).Where("visitor_id = ?", visitorID).Scan(ctx)
		if err == nil {
			doc.Visitor = visitor
		} else if err != sql.ErrNoRows {
			return err
		}

		consent := new(models.ConsentRecord)
		err = tx.NewSelect().Model(consent).Where("visitor_id = ?", visitorID).Scan(ctx)
		if err == nil {
			doc.Consent = consent
		} else if err != sql.ErrNoRows {
			return err
		}

		if err := tx.NewSelect().Model(&doc.Sessions).
			Where("visitor_id = ?", visitorID).
			Order("started_at ASC").
			Scan(ctx); err != nil {
			return err
		}
		if err := tx.NewSelect().Model(&doc.PageViews).
			Where("visitor_id = ?", visitorID).
			Order("timestamp ASC").
			Scan(ctx); err != nil {
			return err
		}
		return tx.NewSelect().Model(&doc.Events).
			Where("visitor_id = ?", visitorID).
			Order("timestamp ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("export visitor data: %w", err)
	}

	doc.RowCounts = map[string]int{
		"sessions":  len(doc.Sessions),
		"pageViews": len(doc.PageViews),
		"events":    len(doc.Events),
	}

	return doc, nil
}

// Anonymize rewrites the visitor id across all tables to a fresh anonymous
// id, scrubs direct identifiers from the visitor row, and removes the
// consent record. Aggregate rows survive under the anonymized id.
func (s *DataRightsService) Anonymize(ctx context.Context, visitorID string) (string, error) {
	anonymizedID := "anon-" + uuid.New().String()

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*models.PageView)(nil),
			(*models.Event)(nil),
			(*models.Session)(nil),
		} {
			if _, err := tx.NewUpdate().
				Model(model).
				Set("visitor_id = ?", anonymizedID).
				Where("visitor_id = ?", visitorID).
				Exec(ctx); err != nil {
				return err
			}
		}

		res, err := tx.NewUpdate().
			Model((*models.Visitor)(nil)).
			Set("visitor_id = ?", anonymizedID).
			Set("user_agent = NULL").
			Set("language = NULL").
			Set("timezone = NULL").
			Set("country = NULL").
			Set("region = NULL").
			Set("city = NULL").
			Set("updated_at = ?", time.Now()).
			Where("visitor_id = ?", visitorID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}

		// Consent cannot meaningfully attach to an anonymized subject.
		_, err = tx.NewDelete().
			Model((*models.ConsentRecord)(nil)).
			Where("visitor_id = ?", visitorID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("anonymize visitor data: %w", err)
	}

	return anonymizedID, nil
}

// AnonymizeIP reduces an IP address to a coarse network prefix for audit
// storage: IPv4 zeroes the last octet, IPv6 keeps the first 4 groups.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	v6 := parsed.To16()
	return fmt.Sprintf("%x:%x:%x:%x::",
		uint16(v6[0])<<8|uint16(v6[1]),
		uint16(v6[2])<<8|uint16(v6[3]),
		uint16(v6[4])<<8|uint16(v6[5]),
		uint16(v6[6])<<8|uint16(v6[7]),
	)
}
