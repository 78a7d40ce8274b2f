package controllers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/angelmondragon/docreview-backend/api/middleware"
	"github.com/angelmondragon/docreview-backend/api/responses"
	"github.com/angelmondragon/docreview-backend/api/validators"
	"github.com/angelmondragon/docreview-backend/internal/documents"
	"github.com/angelmondragon/docreview-backend/internal/history"
	"github.com/angelmondragon/docreview-backend/internal/review"
	"github.com/angelmondragon/docreview-backend/internal/uploads"
	"github.com/angelmondragon/docreview-backend/pkg/db/models"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
	"github.com/angelmondragon/docreview-backend/pkg/pagination"
)

const (
	uploadFormField = "files"
	multipartMemory = 8 << 20
)

// ReviewService is the surface of review.Service the HTTP layer drives.
type ReviewService interface {
	Upload(ctx context.Context, in review.UploadInput) ([]documents.Record, error)
	List(ctx context.Context, sessionID, status string) ([]documents.Record, error)
	Get(ctx context.Context, sessionID string, id int64) (documents.Record, error)
	Decide(ctx context.Context, sessionID string, id int64, decision enums.DocumentDecision) (documents.Record, error)
	Reanalyze(ctx context.Context, sessionID string, id int64) (documents.Record, error)
	History(ctx context.Context, sessionID string, filter history.Filter, params pagination.Params) (history.Page, error)
	Stats(ctx context.Context, sessionID string, filter history.Filter) (history.Stats, error)
	Archived(ctx context.Context, filter history.ArchiveFilter) ([]models.ReviewHistory, error)
}

// FileReader loads one multipart part into memory.
type FileReader interface {
	Read(fh *multipart.FileHeader) (uploads.File, error)
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=authorize reject"`
}

// DocumentsUpload accepts multipart "files" parts and an optional notify flag.
func DocumentsUpload(svc ReviewService, reader FileReader, maxBody int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			responses.WriteError(ctx, logg, w, multipartError(err))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		headers := r.MultipartForm.File[uploadFormField]
		if len(headers) == 0 {
			headers = r.MultipartForm.File[uploadFormField+"[]"]
		}
		if len(headers) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required").WithDetails(map[string]any{"field": uploadFormField}))
			return
		}

		notify, err := parseFormBool(r.FormValue("notify"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		files := make([]uploads.File, 0, len(headers))
		for _, fh := range headers {
			file, err := reader.Read(fh)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			files = append(files, file)
		}

		records, err := svc.Upload(ctx, review.UploadInput{
			SessionID: middleware.SessionIDFromContext(ctx),
			Files:     files,
			Notify:    notify,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, records)
	}
}

// DocumentsList returns the active set, optionally filtered by ?status=.
func DocumentsList(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
		records, err := svc.List(ctx, middleware.SessionIDFromContext(ctx), status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}

func DocumentsGet(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseURLInt64(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rec, err := svc.Get(ctx, middleware.SessionIDFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

// DocumentsDecide applies {"decision":"authorize"|"reject"} to a pending document.
func DocumentsDecide(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseURLInt64(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body decisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		decision, err := enums.ParseDocumentDecision(body.Decision)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}

		if logg != nil {
			ctx = logg.WithDocumentID(ctx, id)
		}
		rec, err := svc.Decide(ctx, middleware.SessionIDFromContext(ctx), id, decision)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "status", rec.Status), "document.decided")
		}
		responses.WriteSuccess(w, rec)
	}
}

func DocumentsReanalyze(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseURLInt64(r, "documentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rec, err := svc.Reanalyze(ctx, middleware.SessionIDFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

func parseFormBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	}
	return false, pkgerrors.New(pkgerrors.CodeValidation, "notify must be a boolean").WithDetails(map[string]any{"field": "notify"})
}

func multipartError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return pkgerrors.Wrap(pkgerrors.CodeTooLarge, err, "upload exceeds the request size limit").
			WithDetails(map[string]any{"limit_bytes": maxErr.Limit})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request must be multipart/form-data")
}
