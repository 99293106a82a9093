package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-tutoring/internal/classroom"
	"github.com/mind-engage/mindengage-tutoring/internal/games"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
)

var (
	errForbidden = errors.New("forbidden")
	errBadJSON   = errors.New("bad json")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// fail maps store and validation errors to a status. Unmapped errors are
// logged and reported as 500 without detail.
func fail(w http.ResponseWriter, log *zap.Logger, err error) {
	var verrs validator.ValidationErrors
	var serr *scoring.SchemaError
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Translate(translator)
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
	case errors.As(err, &serr):
		writeError(w, http.StatusBadRequest, serr.Error())
	case errors.Is(err, scoring.ErrMalformedSchema), errors.Is(err, errBadJSON), errors.Is(err, games.ErrUnknownGame):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, classroom.ErrNotFound), errors.Is(err, homework.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, classroom.ErrRelationExists), errors.Is(err, homework.ErrNotSubmitted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, scoring.ErrMalformedSchema) {
			return err
		}
		return errBadJSON
	}
	return validate.Struct(dst)
}
