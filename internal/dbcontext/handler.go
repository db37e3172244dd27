package dbcontext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sqlaug"
)

// Handler exposes the dynamic record operations over HTTP.
type Handler struct {
	db     *DbContext
	logger *zap.SugaredLogger
}

func NewHandler(db *DbContext, logger *zap.SugaredLogger) *Handler {
	return &Handler{db: db, logger: logger}
}

// Register mounts the record routes below prefix.
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	base := strings.TrimRight(prefix, "/") + "/records/{table}"
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base+"/{fid}", h.Get)
	mux.HandleFunc("PUT "+base+"/{fid}", h.Update)
	mux.HandleFunc("DELETE "+base+"/{fid}", h.Delete)
	mux.HandleFunc("GET "+base+"/{fid}/history", h.History)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryWhere(h.requestContext(r), r.PathValue("table"), "", nil, queryOptions(r)...)
	if err != nil {
		h.fail(w, "list records", err)
		return
	}
	if rows == nil {
		rows = []*record.Record{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.db.GetByFid(h.requestContext(r), r.PathValue("table"), r.PathValue("fid"), queryOptions(r)...)
	if err != nil {
		h.fail(w, "get record", err)
		return
	}
	if rec == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	if _, err := h.db.InsertDynamic(h.requestContext(r), rec); err != nil {
		h.fail(w, "create record", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	rec.Set(metadata.ColFid, r.PathValue("fid"))
	rec.Remove(metadata.ColID)
	if err := h.db.UpdateDynamic(h.requestContext(r), rec); err != nil {
		h.fail(w, "update record", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	rec := record.New(r.PathValue("table")).Set(metadata.ColFid, r.PathValue("fid"))
	if err := h.db.DeleteDynamic(h.requestContext(r), rec); err != nil {
		h.fail(w, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.History(h.requestContext(r), r.PathValue("table"), r.PathValue("fid"))
	if err != nil {
		h.fail(w, "record history", err)
		return
	}
	if rows == nil {
		rows = []*record.Record{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// requestContext applies the asOf query parameter as the replay date.
func (h *Handler) requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if asOf := r.URL.Query().Get("asOf"); asOf != "" {
		ctx = appctx.AsOf(ctx, asOf)
	}
	return ctx
}

func queryOptions(r *http.Request) []sqlaug.Option {
	var opts []sqlaug.Option
	if v := r.URL.Query().Get("displayCodes"); v == "1" || v == "true" {
		opts = append(opts, sqlaug.WithDisplayCodes())
	}
	return opts
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*record.Record, bool) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		h.logger.Debugw("invalid record payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return nil, false
	}
	for k, v := range body {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				body[k] = i
			} else if f, err := n.Float64(); err == nil {
				body[k] = f
			}
		}
	}
	return record.FromMap(r.PathValue("table"), body), true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, dberr.ErrNotFound):
		h.logger.Debugw(action+" failed", "err", err)
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, dberr.ErrInvalidInput):
		h.logger.Debugw(action+" failed", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw(action+" failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": action + " failed"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		h.logger.Errorw("encode response", "err", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
