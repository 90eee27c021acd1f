package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/dmitrijs2005/kosync/internal/server/apierr"
	"github.com/dmitrijs2005/kosync/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies; progress reports are tiny.
const maxBodyBytes = 64 << 10

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r createUserRequest) valid() bool {
	return utf8.RuneCountInString(r.Username) >= 3 && utf8.RuneCountInString(r.Password) >= 6
}

type updateProgressRequest struct {
	Document   *string  `json:"document"`
	Percentage *float64 `json:"percentage"`
	Progress   *string  `json:"progress"`
	Device     *string  `json:"device"`
	DeviceID   *string  `json:"device_id"`
}

// check returns the error code for a request that fails the wire schema.
func (r updateProgressRequest) check() (apierr.Code, bool) {
	if r.Document == nil || utf8.RuneCountInString(*r.Document) < 3 {
		return apierr.DocumentMissing, false
	}
	if r.Percentage == nil || *r.Percentage < 0 || *r.Percentage > 100 {
		return apierr.InvalidFields, false
	}
	if r.Progress == nil || *r.Progress == "" || r.Device == nil || *r.Device == "" {
		return apierr.InvalidFields, false
	}
	return 0, true
}

func (r updateProgressRequest) input() services.UpdateInput {
	in := services.UpdateInput{
		Document:   *r.Document,
		Percentage: r.Percentage,
		Progress:   *r.Progress,
		Device:     *r.Device,
	}
	if r.DeviceID != nil {
		in.DeviceID = *r.DeviceID
	}
	return in
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code apierr.Code) {
	writeJSON(w, code.Status(), code.Body())
}

// decode reads a single JSON object from the request body.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

// fail writes the error response for err, logging anything that is not a
// client error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := apierr.FromError(err)
	if code == apierr.Internal || code == apierr.NoStorage {
		s.logger.Error(r.Context(), op+" failed",
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeError(w, code)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": "OK"})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil || !req.valid() {
		writeError(w, apierr.InvalidFields)
		return
	}

	if err := s.users.Register(r.Context(), req.Username, req.Password); err != nil {
		s.fail(w, r, "register", err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "user", req.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

func (s *Server) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	if _, err := s.users.Authorized(r.Context()); err != nil {
		s.fail(w, r, "auth", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authorized": "OK"})
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req updateProgressRequest
	if err := decode(r, &req); err != nil {
		writeError(w, apierr.InvalidFields)
		return
	}
	if code, ok := req.check(); !ok {
		writeError(w, code)
		return
	}

	user, err := s.users.Authorized(r.Context())
	if err != nil {
		s.fail(w, r, "update progress", err)
		return
	}

	res, err := s.progress.Update(r.Context(), user, req.input())
	if err != nil {
		s.fail(w, r, "update progress", err)
		return
	}

	s.logger.Debug(r.Context(), "progress updated", "user", user, "document", res.Document)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	document := chi.URLParam(r, "document")
	if v, err := url.PathUnescape(document); err == nil {
		document = v
	}
	if utf8.RuneCountInString(document) < 3 {
		writeError(w, apierr.DocumentMissing)
		return
	}

	user, err := s.users.Authorized(r.Context())
	if err != nil {
		s.fail(w, r, "get progress", err)
		return
	}

	p, err := s.progress.Get(r.Context(), user, document)
	if err != nil {
		s.fail(w, r, "get progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
