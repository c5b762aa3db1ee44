package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/jacksonlee411/rank-math-api/internal/routing"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/services"
	"github.com/jacksonlee411/rank-math-api/pkg/httperr"
	"github.com/jacksonlee411/rank-math-api/pkg/logger"
	"github.com/jacksonlee411/rank-math-api/pkg/pgerr"
	"github.com/jacksonlee411/rank-math-api/pkg/sanitize"
	"go.uber.org/zap"
)

const (
	paramPostID = "post_id"

	maxBodyBytes       = 1 << 20
	maxMultipartMemory = 8 << 20
)

type PrincipalGetter func(ctx context.Context) types.Principal

type MetaUpdater interface {
	ValidateItem(ctx context.Context, id int64) (types.ContentItem, error)
	CanEditPosts(ctx context.Context, p types.Principal) (bool, error)
	UpdateMeta(ctx context.Context, p types.Principal, req types.UpdateRequest) (types.UpdateResult, error)
}

type UpdateMetaController struct {
	Principal PrincipalGetter
	Service   MetaUpdater
	Logger    *zap.Logger
}

var (
	errInvalidJSON = errors.New("invalid json body")
	errInvalidBody = errors.New("invalid request body")
)

func (c UpdateMetaController) HandleUpdateMetaAPI(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), c.Logger)

	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	params, err := collectParams(r)
	if err != nil {
		if errors.Is(err, errInvalidJSON) {
			writeError(w, r, http.StatusBadRequest, "rest_invalid_json", "Invalid JSON body passed.")
			return
		}
		routing.WriteErrorWithParams(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "rest_invalid_param", "Invalid request body.", nil)
		return
	}

	rawID, ok := params[paramPostID]
	if !ok {
		routing.WriteErrorWithParams(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "rest_missing_callback_param", "Missing parameter(s): post_id",
			map[string]string{paramPostID: "post_id is a required parameter."})
		return
	}

	invalid := newInvalidParams()
	var itemID int64
	if id, ok := parseID(rawID); !ok {
		invalid.add(paramPostID, "Invalid parameter.")
	} else {
		item, err := c.Service.ValidateItem(r.Context(), id)
		switch {
		case errors.Is(err, services.ErrItemNotFound), errors.Is(err, services.ErrItemNotEligible):
			invalid.add(paramPostID, "Invalid parameter.")
		case err != nil:
			log.Error("validate post_id failed", pgerr.Fields(err, zap.Int64("post_id", id))...)
			writeError(w, r, http.StatusInternalServerError, "store_error", "")
			return
		default:
			itemID = item.ID
		}
	}

	var fields types.FieldValues
	for _, f := range types.Fields {
		raw, ok := params[string(f)]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			invalid.add(string(f), string(f)+" is not of type string.")
			continue
		}
		fields.Set(f, s)
	}
	if !invalid.empty() {
		invalid.write(w, r)
		return
	}

	fields, badURL := sanitizeFields(fields)
	if badURL {
		invalid.add(string(types.FieldCanonicalURL), "Invalid URL.")
		invalid.write(w, r)
		return
	}

	principal := c.Principal(r.Context())
	allowed, err := c.Service.CanEditPosts(r.Context(), principal)
	if err != nil {
		log.Error("coarse capability check failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "authz_error", "")
		return
	}
	if !allowed {
		status := http.StatusForbidden
		if principal.IsAnonymous() {
			status = http.StatusUnauthorized
		}
		writeError(w, r, status, "rest_forbidden", "Sorry, you are not allowed to do that.")
		return
	}

	result, err := c.Service.UpdateMeta(r.Context(), principal, types.UpdateRequest{ItemID: itemID, Fields: fields})
	if err != nil {
		switch {
		case httperr.IsForbidden(err):
			writeError(w, r, http.StatusForbidden, httperr.ForbiddenCode(err), err.Error())
		case httperr.IsBadRequest(err):
			writeError(w, r, http.StatusBadRequest, "no_fields_provided", err.Error())
		case errors.Is(err, services.ErrPermissionCheck):
			log.Error("item capability check failed", zap.Int64("post_id", itemID), zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "authz_error", "")
		default:
			log.Error("update meta failed", pgerr.Fields(err, zap.Int64("post_id", itemID))...)
			writeError(w, r, http.StatusInternalServerError, "store_error", "")
		}
		return
	}
	routing.WriteJSON(w, http.StatusOK, result)
}

// collectParams merges query parameters with body parameters; body values
// win. JSON bodies keep their decoded types so non-string fields can be
// rejected.
func collectParams(r *http.Request) (map[string]any, error) {
	params := map[string]any{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[len(vs)-1]
		}
	}
	if r.Body == nil {
		return params, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, errInvalidBody
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return params, nil
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, errInvalidJSON
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, errInvalidJSON
		}
		for k, v := range obj {
			params[k] = v
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, errInvalidBody
		}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				params[k] = vs[len(vs)-1]
			}
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, errInvalidBody
		}
		for k, vs := range r.MultipartForm.Value {
			if len(vs) > 0 {
				params[k] = vs[len(vs)-1]
			}
		}
	}
	return params, nil
}

// parseID accepts a digit string or a non-negative integral JSON number.
func parseID(raw any) (int64, bool) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	default:
		return 0, false
	}
	id, err := sanitize.ID(s)
	if err != nil {
		return 0, false
	}
	return id, true
}

// sanitizeFields reports true when a non-empty canonical URL cleans to "".
func sanitizeFields(in types.FieldValues) (types.FieldValues, bool) {
	var out types.FieldValues
	if v := in.Get(types.FieldTitle); v.Set {
		out.Set(types.FieldTitle, sanitize.TextField(v.Value))
	}
	if v := in.Get(types.FieldDescription); v.Set {
		out.Set(types.FieldDescription, sanitize.TextField(v.Value))
	}
	if v := in.Get(types.FieldCanonicalURL); v.Set {
		clean := sanitize.URL(v.Value)
		if clean == "" && strings.TrimSpace(v.Value) != "" {
			return out, true
		}
		out.Set(types.FieldCanonicalURL, clean)
	}
	return out, false
}

type invalidParams struct {
	names    []string
	messages map[string]string
}

func newInvalidParams() *invalidParams {
	return &invalidParams{messages: map[string]string{}}
}

func (p *invalidParams) add(name, message string) {
	if _, ok := p.messages[name]; !ok {
		p.names = append(p.names, name)
	}
	p.messages[name] = message
}

func (p *invalidParams) empty() bool { return len(p.names) == 0 }

func (p *invalidParams) write(w http.ResponseWriter, r *http.Request) {
	routing.WriteErrorWithParams(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "rest_invalid_param",
		"Invalid parameter(s): "+strings.Join(p.names, ", "), p.messages)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	routing.WriteError(w, r, routing.RouteClassPublicAPI, status, code, message)
}
