package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"code-redemption/internal/domain/model"
)

const exportTimeFormat = "2006-01-02 15:04:05"

func csvHeaders(w http.ResponseWriter, prefix string) {
	name := fmt.Sprintf("%s-%s.csv", prefix, time.Now().UTC().Format("2006-01-02-15-04-05"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
}

// exportCodes streams every code matching the filter, a page at a time.
func (s *Server) exportCodes(w http.ResponseWriter, r *http.Request) {
	f, ok := codeFilterFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "status must be used, unused or all")
		return
	}
	ctx := r.Context()
	p := model.Page{Limit: model.MaxPageSize}

	// Fetch the first page before committing to a 200.
	items, _, err := s.codeUC.List(ctx, f, p)
	if err != nil {
		s.log.Error().Err(err).Msg("export codes")
		writeError(w, http.StatusInternalServerError, "failed to export codes")
		return
	}

	csvHeaders(w, "auth-codes")
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Code", "Status", "Created At", "Used At"})
	for len(items) > 0 {
		for _, c := range items {
			usedAt := ""
			if c.UsedAt != nil {
				usedAt = c.UsedAt.UTC().Format(exportTimeFormat)
			}
			_ = cw.Write([]string{c.Value, string(c.Status), c.CreatedAt.UTC().Format(exportTimeFormat), usedAt})
		}
		if len(items) < p.Limit {
			break
		}
		p.Offset += p.Limit
		if items, _, err = s.codeUC.List(ctx, f, p); err != nil {
			s.log.Error().Err(err).Int("offset", p.Offset).Msg("export codes aborted")
			break
		}
	}
	cw.Flush()
}

func (s *Server) exportAttempts(w http.ResponseWriter, r *http.Request) {
	f, ok := attemptFilterFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status or since filter")
		return
	}
	ctx := r.Context()
	p := model.Page{Limit: model.MaxPageSize}

	items, _, err := s.attemptUC.List(ctx, f, p)
	if err != nil {
		s.log.Error().Err(err).Msg("export attempts")
		writeError(w, http.StatusInternalServerError, "failed to export attempts")
		return
	}

	csvHeaders(w, "auth-attempts")
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"ID", "Auth Code", "Name", "Email", "Phone", "Purchase Location", "IP Address", "Status", "Created At"})
	for len(items) > 0 {
		for _, a := range items {
			_ = cw.Write([]string{
				a.ID,
				a.CodeValue,
				a.Contact.Name,
				a.Contact.Email,
				a.Contact.Phone,
				a.Contact.PurchaseLocation,
				a.Client.IP,
				string(a.Status),
				a.CreatedAt.UTC().Format(exportTimeFormat),
			})
		}
		if len(items) < p.Limit {
			break
		}
		p.Offset += p.Limit
		if items, _, err = s.attemptUC.List(ctx, f, p); err != nil {
			s.log.Error().Err(err).Int("offset", p.Offset).Msg("export attempts aborted")
			break
		}
	}
	cw.Flush()
}
