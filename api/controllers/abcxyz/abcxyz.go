package abcxyz

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/abcxyz-forecast/api/middleware"
	"github.com/angelmondragon/abcxyz-forecast/api/responses"
	"github.com/angelmondragon/abcxyz-forecast/api/validators"
	internalabcxyz "github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

const (
	uploadField       = "file"
	maxFileNameLength = 255
)

type cutoffsRequest struct {
	ACut *float64 `json:"a_cut" validate:"required,gte=0,lte=1"`
	BCut *float64 `json:"b_cut" validate:"required,gte=0,lte=1"`
	XCut *float64 `json:"x_cut" validate:"required,gte=0"`
	YCut *float64 `json:"y_cut" validate:"required,gte=0"`
}

func (r cutoffsRequest) toCutoffs() internalabcxyz.Cutoffs {
	return internalabcxyz.Cutoffs{ACut: *r.ACut, BCut: *r.BCut, XCut: *r.XCut, YCut: *r.YCut}
}

// Run classifies the last twelve months of database sales.
func Run(svc internalabcxyz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}
		result, err := svc.ClassifyFromDatabase(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Import classifies an uploaded CSV or XLSX file sent as multipart field "file".
func Import(svc internalabcxyz.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}

		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file too large").
					WithDetails(map[string]any{"max_bytes": maxBytes}))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required").
				WithDetails(map[string]any{"field": uploadField}))
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read uploaded file"))
			return
		}

		fileName := validators.SanitizeFileName(header.Filename, maxFileNameLength)
		ctx := logg.WithFields(r.Context(), map[string]any{"file_name": fileName, "size_bytes": len(content)})
		result, err := svc.ClassifyFromFile(ctx, fileName, content)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Last returns the most recent classification, optionally restricted by ?source=db|spreadsheet.
func Last(svc internalabcxyz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}

		var source enums.ResultSource
		if raw := strings.TrimSpace(r.URL.Query().Get("source")); raw != "" {
			parsed, err := enums.ParseResultSource(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source"))
				return
			}
			source = parsed
		}

		result, err := svc.LastResult(r.Context(), source)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Result(svc internalabcxyz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "resultId"))
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "result id is required"))
			return
		}
		result, err := svc.GetResult(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetConfig(svc internalabcxyz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}
		cutoffs, err := svc.Cutoffs(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cutoffs)
	}
}

// UpdateConfig replaces the stored cutoffs after validating their ordering.
func UpdateConfig(svc internalabcxyz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}

		var req cutoffsRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateCutoffs(r.Context(), req.toCutoffs(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func Precheck(svc internalabcxyz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}
		pre, err := svc.Precheck(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pre)
	}
}

// Template downloads the import template; ?format=xlsx switches from the default csv.
func Template(svc internalabcxyz.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "classification service unavailable"))
			return
		}
		file, err := svc.Template(r.URL.Query().Get("format"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteFile(w, file.FileName, file.ContentType, file.Content)
	}
}
