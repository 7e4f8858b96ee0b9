package httpapi

import (
	"context"
	"net/http"
	"time"

	"schooladmin.org/internal/auth"
)

type periodCounts struct {
	Today int64 `json:"today"`
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
	Total int64 `json:"total"`
}

type dashboardStats struct {
	Admissions periodCounts `json:"admissions"`
	Visitors   periodCounts `json:"visitors"`
}

// handleDashboardStats aggregates counts per period. Week is the last
// seven days, month is the calendar month.
func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if _, err := a.requirePermission(r, auth.PermViewDashboard); err != nil {
		writeFailure(w, err)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	now := time.Now()
	admissions, err := a.countPeriods(r.Context(), "admission_inquiries", "inquiry_date", now)
	if err != nil {
		writeFailure(w, err)
		return
	}
	visitors, err := a.countPeriods(r.Context(), "visitors", "visit_date", now)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeData(w, dashboardStats{Admissions: admissions, Visitors: visitors})
}

func (a *API) countPeriods(ctx context.Context, table, dateColumn string, now time.Time) (periodCounts, error) {
	today := now.Format("2006-01-02")
	weekAgo := now.AddDate(0, 0, -6).Format("2006-01-02")
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")

	var pc periodCounts
	var err error
	if pc.Today, err = a.gw.Count(ctx, table, dateColumn+" = ?", today); err != nil {
		return periodCounts{}, err
	}
	if pc.Week, err = a.gw.Count(ctx, table, dateColumn+" >= ?", weekAgo); err != nil {
		return periodCounts{}, err
	}
	if pc.Month, err = a.gw.Count(ctx, table, dateColumn+" >= ?", monthStart); err != nil {
		return periodCounts{}, err
	}
	if pc.Total, err = a.gw.Count(ctx, table, ""); err != nil {
		return periodCounts{}, err
	}
	return pc, nil
}
