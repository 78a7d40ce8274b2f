package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/docreview-backend/api/middleware"
	"github.com/angelmondragon/docreview-backend/api/responses"
	"github.com/angelmondragon/docreview-backend/api/validators"
	"github.com/angelmondragon/docreview-backend/internal/documents"
	"github.com/angelmondragon/docreview-backend/internal/history"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
	"github.com/angelmondragon/docreview-backend/pkg/pagination"
)

// HistoryList pages through the caller's ledger newest first.
func HistoryList(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		filter, err := parseHistoryFilter(r, true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.History(ctx, middleware.SessionIDFromContext(ctx), filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// HistoryStats summarizes the caller's ledger over an optional time range.
func HistoryStats(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		filter, err := parseHistoryFilter(r, false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		stats, err := svc.Stats(ctx, middleware.SessionIDFromContext(ctx), filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// HistoryArchive reads the durable archive. Without ?session_id it spans
// every session.
func HistoryArchive(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		filter, err := parseHistoryFilter(r, true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := svc.Archived(ctx, history.ArchiveFilter{
			SessionID: strings.TrimSpace(r.URL.Query().Get("session_id")),
			Status:    filter.Status,
			From:      filter.From,
			To:        filter.To,
			Limit:     pagination.NormalizeLimit(limit),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func parseHistoryFilter(r *http.Request, withStatus bool) (history.Filter, error) {
	var filter history.Filter

	from, err := validators.ParseQueryTime(r, "from")
	if err != nil {
		return filter, err
	}
	to, err := validators.ParseQueryTime(r, "to")
	if err != nil {
		return filter, err
	}
	if to != nil && isDateOnly(r.URL.Query().Get("to")) {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && from.After(*to) {
		return filter, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	filter.From, filter.To = from, to

	if !withStatus {
		return filter, nil
	}
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if raw == "" || raw == documents.StatusAll {
		return filter, nil
	}
	status, err := enums.ParseDocumentStatus(raw)
	if err != nil {
		return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
	}
	filter.Status = &status
	return filter, nil
}

func isDateOnly(raw string) bool {
	_, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	return err == nil
}
