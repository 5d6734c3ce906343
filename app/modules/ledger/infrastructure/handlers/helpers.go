package ledgerhandlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

const maxBodyBytes = 1 << 16

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("body contains unknown key %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to encode response",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

func (h *LedgerHandlers) errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, r, status, errorBody{Error: message, Code: code})
}

func (h *LedgerHandlers) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.errorResponse(w, r, http.StatusBadRequest, "bad_request", err.Error())
}

// mapServiceErrorToHTTP writes the response for an error returned by the ledger service.
func (h *LedgerHandlers) mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	code := ledgerdomain.RejectionCode(err)
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidScore), errors.Is(err, ledgerdomain.ErrScoreTooLarge),
		errors.Is(err, ledgerdomain.ErrInvalidParticipant):
		h.errorResponse(w, r, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, ledgerdomain.ErrScoreNotImproved):
		h.errorResponse(w, r, http.StatusConflict, code, err.Error())
	case errors.Is(err, ledgerdomain.ErrSystemPaused):
		h.errorResponse(w, r, http.StatusServiceUnavailable, code, err.Error())
	case errors.Is(err, ledgerdomain.ErrUnauthorized):
		h.errorResponse(w, r, http.StatusForbidden, code, err.Error())
	case errors.Is(err, ledgerdomain.ErrContention):
		w.Header().Set("Retry-After", "1")
		h.errorResponse(w, r, http.StatusServiceUnavailable, "contention", "participant is busy, retry shortly")
	default:
		h.logger.ErrorContext(r.Context(), "Internal server error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		h.errorResponse(w, r, http.StatusInternalServerError, code, "the server encountered a problem and could not process your request")
	}
}

// queryLimit reads a non-negative integer query parameter. Absent yields def.
func queryLimit(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	if n > ledgerdomain.MaxLimit {
		n = ledgerdomain.MaxLimit
	}
	return n, nil
}
