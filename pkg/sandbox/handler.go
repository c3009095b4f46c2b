package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/rest"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// maxBodyBytes bounds request bodies of insert and update.
const maxBodyBytes = 1 << 20

// Handler serves an endpoints API as a REST collection:
//
//	GET    /{resource}/{id}
//	POST   /{resource}
//	PUT    /{resource}
//	DELETE /{resource}/{id}
//	GET    /{resource}?offset=&limit=&order=
type Handler struct {
	api        endpoints.API
	idProperty string
	log        logger.Logger
}

// NewHandler serves api. Path identities are passed to api under idProperty.
func NewHandler(api endpoints.API, idProperty string, log logger.Logger) *Handler {
	if idProperty == "" {
		idProperty = "id"
	}
	return &Handler{api: api, idProperty: idProperty, log: logger.OrNop(log)}
}

// Register mounts the collection routes on r. r must use encoded paths.
func (h *Handler) Register(r *mux.Router, resource string) {
	collection := "/" + resource
	r.HandleFunc(collection, h.list).Methods(http.MethodGet)
	r.HandleFunc(collection, h.insert).Methods(http.MethodPost)
	r.HandleFunc(collection, h.update).Methods(http.MethodPut)
	r.HandleFunc(collection+"/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc(collection+"/{id}", h.remove).Methods(http.MethodDelete)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	params, err := h.identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, h.api.Get(r.Context(), params))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	params, err := h.identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, h.api.Remove(r.Context(), params))
}

func (h *Handler) insert(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, h.api.Insert(r.Context(), record))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, h.api.Update(r.Context(), record))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params endpoints.ListParams
	var err error
	if params.Offset, err = nonNegative(q.Get("offset")); err != nil {
		writeError(w, endpoints.BadRequest("offset must be a non-negative integer"))
		return
	}
	if params.Limit, err = nonNegative(q.Get("limit")); err != nil {
		writeError(w, endpoints.BadRequest("limit must be a non-negative integer"))
		return
	}
	params.Order = q.Get("order")
	h.respond(w, r, h.api.List(r.Context(), params))
}

func (h *Handler) identity(r *http.Request) (endpoints.Params, *endpoints.Error) {
	raw := mux.Vars(r)["id"]
	id, err := url.PathUnescape(raw)
	if err != nil || id == "" {
		return nil, endpoints.BadRequest(fmt.Sprintf("invalid %s", h.idProperty))
	}
	return endpoints.Params{h.idProperty: id}, nil
}

// respond executes req and writes its response once the callback fires. A
// client that goes away stops the wait, not the call.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, req endpoints.Request) {
	done := make(chan endpoints.Response, 1)
	req.Execute(func(resp endpoints.Response) {
		select {
		case done <- resp:
		default:
			h.log.WithContext(r.Context()).Warn("api call completed more than once", "path", r.URL.Path)
		}
	})

	select {
	case <-r.Context().Done():
		h.log.WithContext(r.Context()).Debug("client went away", "path", r.URL.Path)
	case resp := <-done:
		if resp.Error != nil {
			writeError(w, resp.Error)
			return
		}
		writeJSON(w, http.StatusOK, resp.Payload())
	}
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (map[string]any, *endpoints.Error) {
	var record map[string]any
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&record)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return nil, endpoints.NewError(http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		return nil, endpoints.BadRequest("request body is required")
	case err != nil:
		return nil, endpoints.BadRequest(fmt.Sprintf("invalid JSON object: %v", err))
	case record == nil:
		return nil, endpoints.BadRequest("request body must be a JSON object")
	}
	return record, nil
}

func nonNegative(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes e in the Google API error envelope. Codes outside the
// HTTP error range are sent as 500.
func writeError(w http.ResponseWriter, e *endpoints.Error) {
	status := e.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"error": e})
}

// requestID propagates X-Request-ID into the request context, generating one
// when the caller sent none.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(rest.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(rest.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}
