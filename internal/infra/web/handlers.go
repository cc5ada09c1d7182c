package web

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"code-redemption/internal/domain"
	"code-redemption/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

const maxImportBody = 10 << 20

type codeJSON struct {
	ID        string     `json:"id"`
	Value     string     `json:"value"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

type attemptJSON struct {
	ID        string           `json:"id"`
	Code      string           `json:"code"`
	Status    string           `json:"status"`
	Contact   model.Contact    `json:"contact"`
	Client    model.ClientInfo `json:"client"`
	CreatedAt time.Time        `json:"created_at"`
	Redacted  bool             `json:"redacted,omitempty"`
}

type listResponse[T any] struct {
	Data    []T `json:"data"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func pageFrom(r *http.Request) (int, int, model.Page) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := model.NewPage(page, perPage)
	return p.Offset/p.Limit + 1, p.Limit, p
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	d, err := s.codeUC.Dashboard(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("dashboard")
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func codeFilterFrom(r *http.Request) (model.CodeFilter, bool) {
	q := r.URL.Query()
	f := model.CodeFilter{Search: strings.TrimSpace(q.Get("search"))}
	if raw := q.Get("status"); raw != "" && raw != "all" {
		st, ok := model.ParseCodeStatus(raw)
		if !ok {
			return f, false
		}
		f.Status = st
	}
	return f, true
}

func (s *Server) listCodes(w http.ResponseWriter, r *http.Request) {
	f, ok := codeFilterFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "status must be used, unused or all")
		return
	}
	page, perPage, p := pageFrom(r)
	items, total, err := s.codeUC.List(r.Context(), f, p)
	if err != nil {
		s.log.Error().Err(err).Msg("list codes")
		writeError(w, http.StatusInternalServerError, "failed to list codes")
		return
	}
	out := make([]codeJSON, 0, len(items))
	for _, c := range items {
		out = append(out, codeJSON{ID: c.ID, Value: c.Value, Status: string(c.Status), CreatedAt: c.CreatedAt, UsedAt: c.UsedAt})
	}
	writeJSON(w, http.StatusOK, listResponse[codeJSON]{Data: out, Total: total, Page: page, PerPage: perPage})
}

// importCodes accepts a multipart "csv_file" upload, a text/csv body, or a
// plain body with one code per line. CSV input skips its header row and reads
// the first column.
func (s *Server) importCodes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	var (
		values []string
		err    error
	)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mt == "multipart/form-data":
		file, _, ferr := r.FormFile("csv_file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "csv_file is required")
			return
		}
		defer file.Close()
		values, err = readCSVCodes(file)
	case mt == "text/csv" || r.URL.Query().Get("format") == "csv":
		values, err = readCSVCodes(r.Body)
	default:
		values, err = readLineCodes(r.Body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read codes: "+err.Error())
		return
	}
	if len(values) == 0 {
		writeError(w, http.StatusBadRequest, "no codes supplied")
		return
	}

	res, err := s.codeUC.Provision(r.Context(), values)
	if err != nil {
		s.log.Error().Err(err).Msg("import codes")
		writeError(w, http.StatusInternalServerError, "failed to import codes")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func readCSVCodes(rd io.Reader) ([]string, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var out []string
	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(rec) > 0 {
			out = append(out, rec[0])
		}
	}
}

func readLineCodes(rd io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

func (s *Server) codeStatus(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the request carried escapes.
	value := chi.URLParam(r, "value")
	if r.URL.RawPath != "" {
		v, err := url.PathUnescape(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid code")
			return
		}
		value = v
	}
	st, code, err := s.codeUC.Status(r.Context(), value)
	if errors.Is(err, domain.ErrEmptyCode) {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("code status")
		writeError(w, http.StatusInternalServerError, "failed to load code status")
		return
	}
	resp := map[string]any{"status": st}
	if code != nil {
		resp["code"] = codeJSON{ID: code.ID, Value: code.Value, Status: string(st), CreatedAt: code.CreatedAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteCode(w http.ResponseWriter, r *http.Request) {
	n, err := s.codeUC.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error().Err(err).Msg("delete code")
		writeError(w, http.StatusInternalServerError, "failed to delete code")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "code not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAllCodes(w http.ResponseWriter, r *http.Request) {
	n, err := s.codeUC.DeleteAll(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("delete all codes")
		writeError(w, http.StatusInternalServerError, "failed to delete codes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func attemptFilterFrom(r *http.Request) (model.AttemptFilter, bool) {
	q := r.URL.Query()
	f := model.AttemptFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		ClientIP: strings.TrimSpace(q.Get("client_ip")),
	}
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, false
		}
		f.Since = t
	}
	if raw := strings.ToLower(q.Get("status")); raw != "" && raw != "all" {
		st := model.AttemptStatus(raw)
		if !st.Valid() {
			return f, false
		}
		f.Status = st
	}
	return f, true
}

func toAttemptJSON(a *model.Attempt) attemptJSON {
	return attemptJSON{
		ID:        a.ID,
		Code:      a.CodeValue,
		Status:    string(a.Status),
		Contact:   a.Contact,
		Client:    a.Client,
		CreatedAt: a.CreatedAt,
		Redacted:  a.Redacted,
	}
}

func (s *Server) listAttempts(w http.ResponseWriter, r *http.Request) {
	f, ok := attemptFilterFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status or since filter")
		return
	}
	page, perPage, p := pageFrom(r)
	items, total, err := s.attemptUC.List(r.Context(), f, p)
	if err != nil {
		s.log.Error().Err(err).Msg("list attempts")
		writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	out := make([]attemptJSON, 0, len(items))
	for _, a := range items {
		out = append(out, toAttemptJSON(a))
	}
	writeJSON(w, http.StatusOK, listResponse[attemptJSON]{Data: out, Total: total, Page: page, PerPage: perPage})
}

func (s *Server) deleteAttempt(w http.ResponseWriter, r *http.Request) {
	n, err := s.attemptUC.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error().Err(err).Msg("delete attempt")
		writeError(w, http.StatusInternalServerError, "failed to delete attempt")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "attempt not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAllAttempts(w http.ResponseWriter, r *http.Request) {
	n, err := s.attemptUC.DeleteAll(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("delete all attempts")
		writeError(w, http.StatusInternalServerError, "failed to delete attempts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"affected": n})
}
