package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"socialfeed/internal/feed"
)

const sessionName = "socialfeed-session"

var (
	errInvalidBody     = errors.New("invalid request body")
	errInvalidID       = errors.New("invalid id")
	errInvalidUserID   = errors.New("invalid user_id")
	errInvalidViewerID = errors.New("invalid viewer_id")
)

// requestMessages are the client-facing texts for malformed requests.
var requestMessages = map[error]string{
	errInvalidBody:     "Invalid request body",
	errInvalidID:       "Invalid id",
	errInvalidUserID:   "Invalid user_id",
	errInvalidViewerID: "Invalid viewer_id",
}

type jsonID uint

// UnmarshalJSON accepts 7 as well as "7".
func (id *jsonID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return errInvalidUserID
	}
	*id = jsonID(v)
	return nil
}

// decodeBody decodes an optional JSON body into v. An empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if errors.Is(err, errInvalidUserID) {
		return errInvalidUserID
	}
	if err != nil {
		return errInvalidBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("Failed to encode response")
	}
}

func statusFor(kind feed.Kind) int {
	switch kind {
	case feed.KindValidation, feed.KindDuplicateKey:
		return http.StatusBadRequest
	case feed.KindNotFound:
		return http.StatusNotFound
	case feed.KindForbidden:
		return http.StatusForbidden
	case feed.KindUnauthorized:
		return http.StatusUnauthorized
	case feed.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes {success:false, message} and counts it against path.
func (api *API) fail(w http.ResponseWriter, path string, status int, message string) {
	api.metrics.BadRequests.WithLabelValues(path).Inc()
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, MessageResponse{Success: false, Message: message})
}

// badRequest answers 400 for a request that could not be parsed.
func (api *API) badRequest(w http.ResponseWriter, path string, err error) {
	message, ok := requestMessages[err]
	if !ok {
		message = "Invalid request"
	}
	api.fail(w, path, http.StatusBadRequest, message)
}

func (api *API) failWith(w http.ResponseWriter, path string, err error) {
	var fe *feed.Error
	if !errors.As(err, &fe) {
		logger.WithError(err).WithField("path", path).Error("Unhandled error")
		api.fail(w, path, http.StatusInternalServerError, "An error occurred.")
		return
	}
	api.fail(w, path, statusFor(fe.Kind), fe.Message)
}

func (api *API) ok(w http.ResponseWriter, path string, v any) {
	api.metrics.SuccessfulRequests.WithLabelValues(path).Inc()
	writeJSON(w, http.StatusOK, v)
}

func pathID(r *http.Request) (uint, error) {
	v, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 0)
	if err != nil || v == 0 {
		return 0, errInvalidID
	}
	return uint(v), nil
}

func (api *API) sessionUserID(r *http.Request) uint {
	session, err := api.sessions.Get(r, sessionName)
	if err != nil {
		return 0
	}
	id, _ := session.Values["user_id"].(uint)
	return id
}

// actorID picks the acting user: body user_id, then the user_id query
// parameter, then the login session. 0 means none was given.
func (api *API) actorID(r *http.Request, body *jsonID) (uint, error) {
	if body != nil && *body != 0 {
		return uint(*body), nil
	}
	if q := r.URL.Query().Get("user_id"); q != "" {
		v, err := strconv.ParseUint(q, 10, 0)
		if err != nil {
			return 0, errInvalidUserID
		}
		return uint(v), nil
	}
	return api.sessionUserID(r), nil
}

// viewerID reads viewer_id, falling back to user_id and then the session.
// 0 is the anonymous viewer.
func (api *API) viewerID(r *http.Request) (uint, error) {
	q := r.URL.Query()
	raw := q.Get("viewer_id")
	if raw == "" {
		raw = q.Get("user_id")
	}
	if raw == "" {
		return api.sessionUserID(r), nil
	}
	v, err := strconv.ParseUint(raw, 10, 0)
	if err != nil {
		return 0, errInvalidViewerID
	}
	return uint(v), nil
}
