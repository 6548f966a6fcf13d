package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/columns"
	"github.com/sells-group/termsheet-cli/internal/export"
	"github.com/sells-group/termsheet-cli/internal/fetcher"
	"github.com/sells-group/termsheet-cli/internal/ingest"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/query"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// session is a cached batch with its layout computed over the full set.
type session struct {
	batch   *ingest.Batch
	policy  columns.Policy
	headers []columns.Header
}

type batchResponse struct {
	ID           string           `json:"id"`
	Records      []*model.Record  `json:"records"`
	Report       ingest.Report    `json:"report"`
	Policy       columns.Policy   `json:"policy"`
	Headers      []columns.Header `json:"headers"`
	ProductTypes []string         `json:"productTypes"`
}

type rowsResponse struct {
	Rows          []*model.Record `json:"rows"`
	Groups        []query.Band    `json:"groups,omitempty"`
	Total         int             `json:"total"`
	Visible       int             `json:"visible"`
	Sort          query.SortSpec  `json:"sort"`
	FiltersActive bool            `json:"filtersActive"`
	Message       string          `json:"message,omitempty"`
}

type columnsResponse struct {
	Policy  columns.Policy   `json:"policy"`
	Headers []columns.Header `json:"headers"`
	Keys    []string         `json:"keys"`
}

type errorResponse struct {
	Error  string         `json:"error"`
	Report *ingest.Report `json:"report,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.uploads.Allow() {
		zap.L().Warn("server: upload rate limit exceeded")
		writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	docs, err := s.readUploads(files)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := s.runner.Run(r.Context(), docs)
	switch {
	case errors.Is(err, ingest.ErrNoRecords):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ingest.ErrNoRecords.Error(), Report: &batch.Report})
		return
	case err != nil:
		zap.L().Error("server: ingest failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}

	policy := columns.Decide(batch.Records)
	sess := &session{batch: batch, policy: policy, headers: columns.Layout(policy)}
	s.sessions.Set(batch.ID, sess, cache.DefaultExpiration)

	writeJSON(w, http.StatusCreated, batchResponse{
		ID:           batch.ID,
		Records:      batch.Records,
		Report:       batch.Report,
		Policy:       sess.policy,
		Headers:      sess.headers,
		ProductTypes: nonNil(query.ProductTypes(batch.Records)),
	})
}

// readUploads turns multipart files into documents; .zip uploads contribute
// their matching members.
func (s *Server) readUploads(files []*multipart.FileHeader) ([]fetcher.Document, error) {
	var docs []fetcher.Document
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(fh.Filename)
		if strings.EqualFold(filepath.Ext(name), ".zip") {
			members, err := fetcher.ReadZIPBytes(data, s.opts.Extensions)
			if err != nil {
				return nil, eris.Errorf("invalid archive %s", name)
			}
			docs = append(docs, members...)
			continue
		}
		docs = append(docs, fetcher.Document{Name: name, Data: data})
	}
	return docs, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, eris.Errorf("cannot read %s", fh.Filename)
	}
	defer f.Close() //nolint:errcheck
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, eris.Errorf("cannot read %s", fh.Filename)
	}
	return data, nil
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	view := parseView(r)
	rows := query.Apply(sess.batch.Records, view)
	resp := rowsResponse{
		Rows:          rows,
		Groups:        query.Groups(rows, view.Sort.Key),
		Total:         len(sess.batch.Records),
		Visible:       len(rows),
		Sort:          view.Sort,
		FiltersActive: view.FiltersActive(),
	}
	if len(rows) == 0 {
		resp.Rows = []*model.Record{}
		resp.Message = query.NoMatchesMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, columnsResponse{
		Policy:  sess.policy,
		Headers: sess.headers,
		Keys:    columns.Keys(sess.headers),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	view := parseView(r)
	f, err := s.exporter.Build(sess.batch.Records, view, sess.policy.AssetColumns)
	if errors.Is(err, export.ErrNothingToExport) {
		writeError(w, http.StatusUnprocessableEntity, query.NoMatchesMessage)
		return
	}
	if err != nil {
		zap.L().Error("server: export failed", zap.String("batch_id", sess.batch.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	defer f.Close() //nolint:errcheck

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.opts.ExportFileName+`"`)
	if err := export.WriteTo(f, w); err != nil {
		zap.L().Warn("server: export write interrupted", zap.Error(err))
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	s.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	v, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "batch not found")
		return nil, false
	}
	return v.(*session), true
}

// parseView reads sort, dir, productType and filter[<key>] query parameters.
func parseView(r *http.Request) query.View {
	q := r.URL.Query()
	view := query.View{
		ProductType: q.Get("productType"),
	}
	if key := q.Get("sort"); key != "" {
		view.Sort = query.SortSpec{Key: key, Dir: query.ParseDirection(q.Get("dir"))}
	}
	for name, vals := range q {
		if !strings.HasPrefix(name, "filter[") || !strings.HasSuffix(name, "]") || len(vals) == 0 {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, "filter["), "]")
		if key == "" || vals[0] == "" {
			continue
		}
		if view.Filters == nil {
			view.Filters = make(map[string]string)
		}
		view.Filters[key] = vals[0]
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
