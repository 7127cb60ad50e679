package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"laplace/internal/lapp"
	"laplace/internal/logging"
)

// writeJSON writes v as the response body with a 200 status, matching
// REPRAM's healthHandler/statusHandler idiom (Content-Type set, then
// json.NewEncoder(w).Encode).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("httpapi: encoding response: %v", err)
	}
}

// writeError writes a {error, request_id} body, spec.md §7's error
// propagation shape, with request_id generated via github.com/google/uuid
// for log correlation (SPEC_FULL.md §3).
func writeError(w http.ResponseWriter, status int, err error) {
	reqID := uuid.NewString()
	logging.Error("httpapi: request %s failed: %v", reqID, err)
	writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: reqID})
}

// statusForError maps a core error to the HTTP status spec.md §7 assigns
// it: permission/enable failures are 403, not-found is 404, everything
// else is 500.
func statusForError(err error) int {
	var denied *lapp.PermissionDeniedError
	switch {
	case errors.Is(err, lapp.ErrLappNotFound):
		return http.StatusNotFound
	case errors.Is(err, lapp.ErrLappNotEnabled), errors.As(err, &denied):
		return http.StatusForbidden
	case errors.Is(err, lapp.ErrLappNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) listLappsResponse() LappsListResponse {
	names := s.Manager.List()
	sort.Strings(names)
	views := make([]LappSettingsView, 0, len(names))
	for _, name := range names {
		l, err := s.Manager.Lapp(name)
		if err != nil {
			continue
		}
		views = append(views, lappSettingsView(l))
	}
	return LappsListResponse{Lapps: views}
}

// handleListLapps serves GET /<admin>/lapps, spec.md §6.
func (s *Server) handleListLapps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.listLappsResponse())
}

// updateRequestBody is the `{ "update": UpdateQuery }` envelope spec.md §6
// specifies for POST /<admin>/lapp/update.
type updateRequestBody struct {
	Update UpdateQuery `json:"update"`
}

// handleUpdateLapp serves POST /<admin>/lapp/update, spec.md §4.4/§6.
func (s *Server) handleUpdateLapp(w http.ResponseWriter, r *http.Request) {
	var body updateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Update.LappName == "" {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: update requires lapp_name"))
		return
	}

	l, err := s.Manager.Lapp(body.Update.LappName)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	resp, err := applyUpdate(r.Context(), s.Manager, l, body.Update)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddLapp serves POST /<admin>/lapp/add: a multipart upload whose
// "lar" field is a zip archive, spec.md §6. On success it registers the
// extracted lapp with the Manager and returns the refreshed lapps list.
func (s *Server) handleAddLapp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("lar")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	// multipart.File embeds io.ReaderAt, which is all ExtractLar's
	// zip.NewReader needs — no intermediate buffering required.
	lappName, err := ExtractLar(s.Manager.LappsDir(), file, header.Size)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Manager.InsertLapp(lappName); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.listLappsResponse())
}
