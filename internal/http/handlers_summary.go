package http

import (
	"net/http"

	"moneynotes/internal/core"
)

const topCategories = 5

// MonthSummary is the dashboard for the current month's list.
type MonthSummary struct {
	core.Overview
	Top      []core.CategoryAmount `json:"top"`
	Today    core.DaySummary       `json:"today"`
	Daily    []core.DailyPoint     `json:"daily"`
	NetLabel string                `json:"net_label"`
}

// AllSummary is the dashboard for the all-time archive.
type AllSummary struct {
	core.Overview
	Monthly  []core.MonthlyPoint `json:"monthly"`
	NetLabel string              `json:"net_label"`
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	today := core.DateOf(now)
	key := "month:" + today.String()

	if cached, ok := s.monthCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	txns := s.deps.Session.Transactions()
	ov := core.Summarize(txns)
	summary := MonthSummary{
		Overview: ov,
		Top:      core.TopCategories(txns, topCategories),
		Today:    core.TodayByCategory(txns, today),
		Daily:    core.DailyTotals(txns, today.Year(), today.Month()),
		NetLabel: core.FormatTHB(ov.Net),
	}
	s.monthCache.Set(key, summary)

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAllSummary(w http.ResponseWriter, r *http.Request) {
	const key = "all"
	if cached, ok := s.allCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	txns, err := s.deps.Archive.LoadAllTime(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ov := core.Summarize(txns)
	summary := AllSummary{
		Overview: ov,
		Monthly:  core.MonthlyTotals(txns),
		NetLabel: core.FormatTHB(ov.Net),
	}
	s.allCache.Set(key, summary)

	writeJSON(w, http.StatusOK, summary)
}
