package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/JonMunkholm/dataquality/internal/quality"
	"github.com/JonMunkholm/dataquality/internal/service"
)

// decodeValidateRequest reads a JSON validation request. The body is capped
// at the upload size limit.
func (s *Server) decodeValidateRequest(w http.ResponseWriter, r *http.Request) (validateRequest, error) {
	var req validateRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Validation.MaxUploadSize)
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		return req, badRequest(err)
	}
	return req, nil
}

// badRequest marks a body that could not be read as an invalid request,
// unless it was cut off by the size limit.
func badRequest(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
}

// handleValidate validates a JSON batch and returns the report summary with
// at most ResultLimit invalid rows. Clients sending Accept: text/html get the
// HTML report page instead.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeValidateRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.service.Validate(r.Context(), req.serviceRequest())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondReport(w, r, report)
}

// handleUpload validates an uploaded CSV file (multipart field "file").
// Options come from the query string:
//
//	dataSource, ruleIds, detectDuplicates, duplicateCheckFields,
//	generateProfile, includeAutoCorrections
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Validation.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, badRequest(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	req, err := uploadRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.DataSourceName == "" {
		req.DataSourceName = header.Filename
	}

	report, err := s.service.ValidateCSV(r.Context(), file, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondReport(w, r, report)
}

func (s *Server) respondReport(w http.ResponseWriter, r *http.Request, report *quality.Report) {
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ReportPage(report, s.cfg.Validation.ResultLimit).Render(r.Context(), w); err != nil {
			s.respondError(w, r, err)
		}
		return
	}

	render.JSON(w, r, validateResponse{
		Success: true,
		Report:  newReportView(report, s.cfg.Validation.ResultLimit),
	})
}

// handleProfile returns column statistics for a JSON batch.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeValidateRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	profile, err := s.service.Profile(r.Context(), req.DataSourceName, req.Rows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, profileResponse{
		Success: true,
		Profile: newProfileView(profile),
	})
}

// handleDetectDuplicates reports repeated rows of a JSON batch.
func (s *Server) handleDetectDuplicates(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeValidateRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	dups, fields, err := s.service.DetectDuplicates(r.Context(), req.Rows, req.DuplicateCheckFields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, newDuplicatesResponse(req.Rows, fields, dups))
}

// handleSuggestCorrections validates a JSON batch and returns correction
// suggestions grouped by row.
func (s *Server) handleSuggestCorrections(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeValidateRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	suggestions, err := s.service.SuggestCorrections(r.Context(), req.serviceRequest())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, newCorrectionsResponse(suggestions))
}

// ----------------------------------------------------------------------------
// Query parsing
// ----------------------------------------------------------------------------

func uploadRequest(r *http.Request) (service.Request, error) {
	q := r.URL.Query()

	ids, err := parseIDList(q.Get("ruleIds"))
	if err != nil {
		return service.Request{}, err
	}

	var flags [3]bool
	for i, name := range []string{"detectDuplicates", "generateProfile", "includeAutoCorrections"} {
		if flags[i], err = queryBool(r, name, true); err != nil {
			return service.Request{}, err
		}
	}

	return service.Request{
		ValidateRequest: quality.ValidateRequest{
			DataSourceName:       q.Get("dataSource"),
			DetectDuplicates:     flags[0],
			DuplicateCheckFields: splitList(q.Get("duplicateCheckFields")),
			GenerateProfile:      flags[1],
			IncludeCorrections:   flags[2],
		},
		RuleIDs: ids,
	}, nil
}

// queryBool parses a boolean query parameter with a default value.
func queryBool(r *http.Request, name string, defaultVal bool) (bool, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal, nil
	}
	b, err := cast.ToBoolE(val)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", service.ErrInvalidRequest, name)
	}
	return b, nil
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDList(s string) ([]uuid.UUID, error) {
	parts := splitList(s)
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("%w: rule id %q", service.ErrInvalidRequest, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
