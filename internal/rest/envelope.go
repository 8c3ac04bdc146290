package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
)

// The backend answers in one of two envelope shapes:
//
//	{"success": true, "message": "...", "data": {...}}
//	{"status": "success", "message": "...", "data": {...}}
//
// decodeEnvelope accepts either, preferring the explicit success flag,
// then the status string, then the HTTP status code.
type envelope struct {
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(statusCode int, payload []byte) (json.RawMessage, error) {
	var env envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			if statusCode >= 200 && statusCode < 300 {
				return nil, pkgerrors.Wrap(pkgerrors.CodeBackend, err, "malformed response envelope")
			}
			return nil, pkgerrors.New(codeForStatus(statusCode), fmt.Sprintf("request failed with status %d", statusCode))
		}
	}

	ok := statusCode >= 200 && statusCode < 300
	if env.Success != nil {
		ok = *env.Success
	} else if env.Status != "" {
		ok = strings.EqualFold(env.Status, "success")
	}
	if ok {
		return env.Data, nil
	}

	message := env.Message
	if message == "" {
		message = env.Error
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", statusCode)
	}
	return nil, pkgerrors.New(codeForStatus(statusCode), message)
}

func codeForStatus(statusCode int) pkgerrors.Code {
	switch {
	case statusCode == http.StatusUnauthorized:
		return pkgerrors.CodeUnauthenticated
	case statusCode == http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case statusCode == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case statusCode == http.StatusConflict:
		return pkgerrors.CodeConflict
	case statusCode == http.StatusUnprocessableEntity || statusCode == http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeBackend
	}
}
