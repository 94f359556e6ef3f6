package services

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/xuri/excelize/v2"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/models"
)

// StatsService powers the admin dashboard aggregates.
type StatsService struct {
	db *bun.DB
}

func NewStatsService(db *bun.DB) *StatsService {
	return &StatsService{db: db}
}

// PageStat is the per-path aggregate consumed by the dashboard.
type PageStat struct {
	Path            string  `json:"path"`
	TotalViews      int64   `json:"totalViews"`
	UniqueVisitors  int64   `json:"uniqueVisitors"`
	AvgDurationSecs float64 `json:"avgDurationSeconds"`
}

// Overview is the site-wide aggregate over a time window.
type Overview struct {
	Visitors      int64   `json:"visitors"`
	Sessions      int64   `json:"sessions"`
	PageViews     int64   `json:"pageViews"`
	Events        int64   `json:"events"`
	BounceRate    float64 `json:"bounceRate"`
	AvgEngagement float64 `json:"avgEngagement"`
}

// PageStats returns per-path view totals for [from, to). The half-open
// interval avoids double counting at window boundaries.
func (s *StatsService) PageStats(ctx context.Context, from, to time.Time) ([]PageStat, error) {
	var stats []PageStat
	err := s.db.NewSelect().
		Model((*models.PageView)(nil)).
		ColumnExpr("path").
		ColumnExpr("count(*) AS total_views").
		ColumnExpr("count(DISTINCT visitor_id) AS unique_visitors").
		ColumnExpr("coalesce(avg(duration_seconds), 0) AS avg_duration_secs").
		Where("timestamp >= ?", from).
		Where("timestamp < ?", to).
		GroupExpr("path").
		OrderExpr("total_views DESC").
		Scan(ctx, &stats)
	if err != nil {
		return nil, fmt.Errorf("query page stats: %w", err)
	}
	if stats == nil {
		stats = []PageStat{}
	}
	return stats, nil
}

// Overview returns site-wide totals for [from, to).
func (s *StatsService) Overview(ctx context.Context, from, to time.Time) (*Overview, error) {
	o := &Overview{}

	err := s.db.NewSelect().
		Model((*models.PageView)(nil)).
		ColumnExpr("count(*)").
		Where("timestamp >= ?", from).
		Where("timestamp < ?", to).
		Scan(ctx, &o.PageViews)
	if err != nil {
		return nil, err
	}

	err = s.db.NewSelect().
		Model((*models.Event)(nil)).
		ColumnExpr("count(*)").
		Where("timestamp >= ?", from).
		Where("timestamp < ?", to).
		Scan(ctx, &o.Events)
	if err != nil {
		return nil, err
	}

	var bounces int64
	err = s.db.NewSelect().
		Model((*models.Session)(nil)).
		ColumnExpr("count(*) AS sessions").
		ColumnExpr("count(*) FILTER (WHERE is_bounce) AS bounces").
		ColumnExpr("count(DISTINCT visitor_id) AS visitors").
		ColumnExpr("coalesce(avg(engagement_score), 0) AS avg_engagement").
		Where("started_at >= ?", from).
		Where("started_at < ?", to).
		Scan(ctx, &o.Sessions, &bounces, &o.Visitors, &o.AvgEngagement)
	if err != nil {
		return nil, err
	}

	if o.Sessions > 0 {
		o.BounceRate = float64(bounces) / float64(o.Sessions)
	}

	return o, nil
}

// ExportPageStatsXLSX renders the page stats into an Excel workbook for
// the dashboard download button.
func (s *StatsService) ExportPageStatsXLSX(ctx context.Context, from, to time.Time) ([]byte, error) {
	stats, err := s.PageStats(ctx, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Page Stats"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Path", "Total Views", "Unique Visitors", "Avg Duration (s)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, st := range stats {
		values := []interface{}{st.Path, st.TotalViews, st.UniqueVisitors, st.AvgDurationSecs}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
