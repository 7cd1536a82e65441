package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"candela-hq/guardian/pkg/anchor"
	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/formats"
	"candela-hq/guardian/pkg/guard"
	"candela-hq/guardian/pkg/integrity"
	"candela-hq/guardian/pkg/ruleset"
)

// Response headers set by POST /v1/check.
const (
	CacheHeader     = "X-Guardian-Cache"
	AuditLineHeader = "X-Guardian-Audit-Line"
	EntryIDHeader   = "X-Guardian-Entry-ID"
)

// Error types returned in the JSON error body.
const (
	errInvalidRequest = "invalid_request_error"
	errTooLarge       = "request_too_large"
	errNotFound       = "not_found"
	errUnavailable    = "service_unavailable"
	errInternal       = "internal_error"
	errUnauthorized   = "authentication_error"
	errRateLimited    = "rate_limit_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes what went wrong.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CheckRequest is the body of POST /v1/check.
type CheckRequest struct {
	Text *string `json:"text"`
}

// LintRequest is the body of POST /v1/lint.
type LintRequest struct {
	Text   *string `json:"text"`
	Strict bool    `json:"strict"`
}

// LintResponse lists the format findings for a text.
type LintResponse struct {
	Passed   bool              `json:"passed"`
	Findings []formats.Finding `json:"findings"`
}

// decodeBody reads a size-limited JSON body into v. On failure the error
// response has been written and false is returned.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, errInvalidRequest, "request body must be a JSON object")
		return false
	}
	return true
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest, `"text" is required`)
		return
	}

	v, info, err := s.deps.Checker.CheckWithInfo(r.Context(), *req.Text)
	if err != nil {
		if errors.Is(err, guard.ErrNoRuleset) {
			writeError(w, http.StatusServiceUnavailable, errUnavailable, "no ruleset loaded")
			return
		}
		s.logger.ErrorContext(r.Context(), "check failed", "error", err)
		writeError(w, http.StatusInternalServerError, errInternal, "failed to record verdict")
		return
	}

	if info.Cached {
		w.Header().Set(CacheHeader, "hit")
	} else {
		w.Header().Set(CacheHeader, "miss")
		w.Header().Set(AuditLineHeader, strconv.Itoa(info.Line))
		w.Header().Set(EntryIDHeader, info.EntryID)
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	var req LintRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest, `"text" is required`)
		return
	}

	findings := formats.Validate(*req.Text, s.lint)
	if findings == nil {
		findings = []formats.Finding{}
	}
	writeJSON(w, http.StatusOK, LintResponse{
		Passed:   formats.Passed(findings, req.Strict),
		Findings: findings,
	})
}

func (s *Server) handleRuleset(w http.ResponseWriter, r *http.Request) {
	rs := s.deps.Checker.Ruleset()
	if rs == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable, "no ruleset loaded")
		return
	}
	writeJSON(w, http.StatusOK, ruleset.NewReport(rs))
}

// handleIntegrity compares the ruleset in force with the ledger. A
// mismatch is reported in the body with a 200 status.
func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	rs := s.deps.Checker.Ruleset()
	if rs == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable, "no ruleset loaded")
		return
	}
	records, err := s.deps.Ledger.Ledger(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to read ledger", "error", err)
		writeError(w, http.StatusInternalServerError, errInternal, "failed to read ledger")
		return
	}
	writeJSON(w, http.StatusOK, integrity.Compare(rs, records))
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	line, err := strconv.Atoi(r.URL.Query().Get("line"))
	if err != nil || line < 1 {
		writeError(w, http.StatusBadRequest, errInvalidRequest, `"line" must be a positive integer`)
		return
	}

	lines, err := audit.ReadLines(s.deps.AuditPath)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to read audit log", "error", err)
		writeError(w, http.StatusInternalServerError, errInternal, "failed to read audit log")
		return
	}
	if line > len(lines) {
		writeError(w, http.StatusNotFound, errNotFound,
			fmt.Sprintf("line %d out of range (log has %d lines)", line, len(lines)))
		return
	}

	records, err := s.deps.Ledger.Ledger(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to read ledger", "error", err)
		writeError(w, http.StatusInternalServerError, errInternal, "failed to read ledger")
		return
	}

	proof, err := anchor.Prove(lines, records, line)
	if err != nil {
		if errors.Is(err, anchor.ErrLogTruncated) {
			writeError(w, http.StatusConflict, errInvalidRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to build proof", "line", line, "error", err)
		writeError(w, http.StatusInternalServerError, errInternal, "failed to build proof")
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, errType, message string) {
	writeJSON(w, code, ErrorResponse{Error: ErrorBody{Type: errType, Message: message}})
}
