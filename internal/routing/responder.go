package routing

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorEnvelope mirrors the REST error shape the plugin's clients already
// parse: code, message and data.status.
type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Data    ErrorEnvelopeData `json:"data"`
	TraceID string            `json:"trace_id,omitempty"`
}

type ErrorEnvelopeData struct {
	Status int               `json:"status"`
	Params map[string]string `json:"params,omitempty"`
}

func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	WriteErrorWithParams(w, r, rc, status, code, message, nil)
}

// WriteErrorWithParams attaches per-parameter messages under data.params.
func WriteErrorWithParams(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string, params map[string]string) {
	if strings.TrimSpace(message) == "" {
		message = humanizeErrorCode(code)
	}
	if isJSONOnly(rc) || wantsJSON(r) {
		WriteJSON(w, status, ErrorEnvelope{
			Code:    code,
			Message: message,
			Data:    ErrorEnvelopeData{Status: status, Params: params},
			TraceID: traceIDFromRequest(r),
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message + "\n"))
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wantsJSON(r *http.Request) bool {
	accept := strings.ToLower(r.Header.Get("Accept"))
	return strings.HasPrefix(accept, "application/json")
}

func isJSONOnly(rc RouteClass) bool {
	return rc == RouteClassPublicAPI
}

func traceIDFromRequest(r *http.Request) string {
	if id := traceIDFromTraceparent(r.Header.Get("traceparent")); id != "" {
		return id
	}
	id, _ := RequestIDFromContext(r.Context())
	return id
}

func traceIDFromTraceparent(traceparent string) string {
	traceparent = strings.TrimSpace(traceparent)
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}

func humanizeErrorCode(code string) string {
	words := strings.FieldsFunc(strings.ToLower(code), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	if len(words) == 0 {
		return "Request failed."
	}
	if words[0] == "rest" && len(words) > 1 {
		words = words[1:]
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ") + "."
}
