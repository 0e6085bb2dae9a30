package abcxyz

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/abcxyz-forecast/api/middleware"
	internalabcxyz "github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

type stubService struct {
	internalabcxyz.Service

	classifyFileFn  func(ctx context.Context, name string, content []byte) (*internalabcxyz.Result, error)
	lastFn          func(ctx context.Context, source enums.ResultSource) (*internalabcxyz.Result, error)
	updateCutoffsFn func(ctx context.Context, c internalabcxyz.Cutoffs, by string) (internalabcxyz.Cutoffs, error)
	templateFn      func(format string) (*internalabcxyz.TemplateFile, error)
	getResultFn     func(ctx context.Context, id string) (*internalabcxyz.Result, error)
}

func (s *stubService) ClassifyFromFile(ctx context.Context, name string, content []byte) (*internalabcxyz.Result, error) {
	return s.classifyFileFn(ctx, name, content)
}

func (s *stubService) LastResult(ctx context.Context, source enums.ResultSource) (*internalabcxyz.Result, error) {
	return s.lastFn(ctx, source)
}

func (s *stubService) UpdateCutoffs(ctx context.Context, c internalabcxyz.Cutoffs, by string) (internalabcxyz.Cutoffs, error) {
	return s.updateCutoffsFn(ctx, c, by)
}

func (s *stubService) Template(format string) (*internalabcxyz.TemplateFile, error) {
	return s.templateFn(format)
}

func (s *stubService) GetResult(ctx context.Context, id string) (*internalabcxyz.Result, error) {
	return s.getResultFn(ctx, id)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func multipartRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/abcxyz/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportPassesFileToService(t *testing.T) {
	var gotName string
	var gotContent []byte
	svc := &stubService{
		classifyFileFn: func(ctx context.Context, name string, content []byte) (*internalabcxyz.Result, error) {
			gotName, gotContent = name, content
			return &internalabcxyz.Result{ID: "r-1", Source: enums.ResultSourceSpreadsheet}, nil
		},
	}

	resp := httptest.NewRecorder()
	Import(svc, 1<<20, testLogger())(resp, multipartRequest(t, "file", "ventas.csv", []byte("id_producto,producto\n")))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotName != "ventas.csv" || string(gotContent) != "id_producto,producto\n" {
		t.Fatalf("unexpected upload %q %q", gotName, gotContent)
	}
	var envelope struct {
		Data internalabcxyz.Result `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.ID != "r-1" {
		t.Fatalf("unexpected result id %q", envelope.Data.ID)
	}
}

func TestImportMissingFileField(t *testing.T) {
	resp := httptest.NewRecorder()
	Import(&stubService{}, 1<<20, testLogger())(resp, multipartRequest(t, "upload", "ventas.csv", []byte("x")))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestImportRejectsOversizedUpload(t *testing.T) {
	resp := httptest.NewRecorder()
	Import(&stubService{}, 64, testLogger())(resp, multipartRequest(t, "file", "big.csv", bytes.Repeat([]byte("1,"), 200)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestLastParsesSource(t *testing.T) {
	var got enums.ResultSource
	svc := &stubService{
		lastFn: func(ctx context.Context, source enums.ResultSource) (*internalabcxyz.Result, error) {
			got = source
			return &internalabcxyz.Result{ID: "r-2"}, nil
		},
	}
	resp := httptest.NewRecorder()
	Last(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/abcxyz/last?source=excel", nil))
	if resp.Code != http.StatusOK || got != enums.ResultSourceSpreadsheet {
		t.Fatalf("unexpected status %d source %q", resp.Code, got)
	}

	resp = httptest.NewRecorder()
	Last(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/abcxyz/last?source=ftp", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestLastNotFound(t *testing.T) {
	svc := &stubService{
		lastFn: func(ctx context.Context, source enums.ResultSource) (*internalabcxyz.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no classification result yet")
		},
	}
	resp := httptest.NewRecorder()
	Last(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/abcxyz/last", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestResultReadsRouteParam(t *testing.T) {
	svc := &stubService{
		getResultFn: func(ctx context.Context, id string) (*internalabcxyz.Result, error) {
			if id != "abc-123" {
				t.Fatalf("unexpected id %q", id)
			}
			return &internalabcxyz.Result{ID: id}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/abcxyz/results/abc-123", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("resultId", "abc-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	Result(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestUpdateConfigUsesCallerIdentity(t *testing.T) {
	var gotBy string
	var got internalabcxyz.Cutoffs
	svc := &stubService{
		updateCutoffsFn: func(ctx context.Context, c internalabcxyz.Cutoffs, by string) (internalabcxyz.Cutoffs, error) {
			got, gotBy = c, by
			return c, nil
		},
	}
	body := `{"a_cut":0.8,"b_cut":0.95,"x_cut":0,"y_cut":1}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/abcxyz/config", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "42"))

	resp := httptest.NewRecorder()
	UpdateConfig(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotBy != "42" || got.ACut != 0.8 || got.XCut != 0 {
		t.Fatalf("unexpected update %+v by %q", got, gotBy)
	}
}

func TestUpdateConfigRequiresAllCutoffs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/abcxyz/config", strings.NewReader(`{"a_cut":0.8}`))
	resp := httptest.NewRecorder()
	UpdateConfig(&stubService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTemplateWritesAttachment(t *testing.T) {
	svc := &stubService{
		templateFn: func(format string) (*internalabcxyz.TemplateFile, error) {
			if format != "xlsx" {
				t.Fatalf("unexpected format %q", format)
			}
			return &internalabcxyz.TemplateFile{FileName: "plantilla.xlsx", ContentType: "application/octet-stream", Content: []byte("PK")}, nil
		},
	}
	resp := httptest.NewRecorder()
	Template(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/abcxyz/template?format=xlsx", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), "plantilla.xlsx") {
		t.Fatalf("missing attachment header: %v", resp.Header())
	}
}
