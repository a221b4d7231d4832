package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.Envelope{Success: true, Data: data})
}

// WriteMessage writes a successful response that carries only a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.Envelope{Success: true, Message: message})
}

// WriteError maps err onto its code's status and envelope. Errors that are
// not *pkgerrors.Error are treated as internal and never shown verbatim.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := classify(err)
	meta := pkgerrors.MetadataFor(typed.Code())
	if logg != nil {
		logFailure(ctx, logg, err, meta.HTTPStatus)
	}
	writeJSON(w, meta.HTTPStatus, errorEnvelope(typed, meta))
}

func classify(err error) *pkgerrors.Error {
	if err == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
}

func errorEnvelope(typed *pkgerrors.Error, meta pkgerrors.Metadata) types.Envelope {
	env := types.Envelope{Message: meta.PublicMessage}
	if meta.ClientVisible() && typed.Message() != "" {
		env.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		env.Errors = typed.Fields()
	}
	return env
}

func logFailure(ctx context.Context, logg *logger.Logger, err error, status int) {
	if err == nil {
		err = errors.New("unknown error")
	}
	ctx = logg.WithFields(ctx, pkgerrors.Dump(err).LogFields())
	ctx = logg.WithField(ctx, "http_status", status)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"message":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
