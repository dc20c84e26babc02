package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/services/groups"
	"github.com/R3E-Network/recordstore/internal/app/services/records"
	internalhttputil "github.com/R3E-Network/recordstore/internal/httputil"
	"github.com/R3E-Network/recordstore/internal/middleware"
)

func (h *handler) catalogRoutes(r *mux.Router) {
	r.Handle("/genres", h.public(h.listGenres)).Methods(http.MethodGet)
	r.Handle("/genres", h.admin(h.createGenre)).Methods(http.MethodPost)
	r.Handle("/genres/{id}", h.public(h.getGenre)).Methods(http.MethodGet)
	r.Handle("/genres/{id}", h.admin(h.updateGenre)).Methods(http.MethodPut)
	r.Handle("/genres/{id}", h.admin(h.deleteGenre)).Methods(http.MethodDelete)

	r.Handle("/groups", h.public(h.listGroups)).Methods(http.MethodGet)
	r.Handle("/groups", h.admin(h.createGroup)).Methods(http.MethodPost)
	r.Handle("/groups/{id}", h.public(h.getGroup)).Methods(http.MethodGet)
	r.Handle("/groups/{id}", h.admin(h.updateGroup)).Methods(http.MethodPut)
	r.Handle("/groups/{id}", h.admin(h.deleteGroup)).Methods(http.MethodDelete)
	r.Handle("/groups/{id}/records", h.public(h.listGroupRecords)).Methods(http.MethodGet)
	r.Handle("/groups/{id}/image", h.adminUpload("image", h.setGroupImage)).Methods(http.MethodPost)

	r.Handle("/records", h.public(h.listRecords)).Methods(http.MethodGet)
	r.Handle("/records", h.admin(h.createRecord)).Methods(http.MethodPost)
	r.Handle("/records/{id}", h.public(h.getRecord)).Methods(http.MethodGet)
	r.Handle("/records/{id}", h.admin(h.updateRecord)).Methods(http.MethodPut)
	r.Handle("/records/{id}", h.admin(h.deleteRecord)).Methods(http.MethodDelete)
	r.Handle("/records/{id}/stock", h.admin(h.restockRecord)).Methods(http.MethodPost)
	r.Handle("/records/{id}/cover", h.adminUpload("cover", h.setRecordCover)).Methods(http.MethodPost)
}

type genrePayload struct {
	Name string `json:"name"`
}

func (h *handler) listGenres(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Genres.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) createGenre(w http.ResponseWriter, r *http.Request) {
	var payload genrePayload
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.app.Genres.Create(r.Context(), payload.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusCreated, g)
}

func (h *handler) getGenre(w http.ResponseWriter, r *http.Request) {
	g, err := h.app.Genres.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, g)
}

func (h *handler) updateGenre(w http.ResponseWriter, r *http.Request) {
	var payload genrePayload
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.app.Genres.Update(r.Context(), mux.Vars(r)["id"], payload.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, g)
}

func (h *handler) deleteGenre(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Genres.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listGroups(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Groups.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("genre_id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var payload groups.Input
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.app.Groups.Create(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusCreated, g)
}

func (h *handler) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.app.Groups.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, g)
}

func (h *handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	var payload groups.Input
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.app.Groups.Update(r.Context(), mux.Vars(r)["id"], payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, g)
}

func (h *handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Groups.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listGroupRecords(w http.ResponseWriter, r *http.Request) {
	g, err := h.app.Groups.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter, err := recordFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter.GroupID = g.ID
	list, err := h.app.Records.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) setGroupImage(w http.ResponseWriter, r *http.Request) {
	g, previous, err := h.app.Groups.SetImage(r.Context(), mux.Vars(r)["id"], middleware.UploadedFile(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.removeUpload(r, previous)
	internalhttputil.WriteJSON(w, http.StatusOK, g)
}

func recordFilter(r *http.Request) (record.Filter, error) {
	q := r.URL.Query()
	filter := record.Filter{
		GroupID: strings.TrimSpace(q.Get("group_id")),
		GenreID: strings.TrimSpace(q.Get("genre_id")),
		Search:  strings.TrimSpace(q.Get("q")),
	}
	var err error
	if filter.InStock, err = internalhttputil.QueryBool(r, "in_stock"); err != nil {
		return record.Filter{}, err
	}
	if filter.Limit, err = internalhttputil.QueryInt(r, "limit", record.DefaultLimit); err != nil {
		return record.Filter{}, err
	}
	if filter.Offset, err = internalhttputil.QueryInt(r, "offset", 0); err != nil {
		return record.Filter{}, err
	}
	return filter, nil
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := recordFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.app.Records.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) createRecord(w http.ResponseWriter, r *http.Request) {
	var payload records.Input
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.app.Records.Create(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusCreated, rec)
}

func (h *handler) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Records.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	var payload records.Input
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.app.Records.Update(r.Context(), mux.Vars(r)["id"], payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Records.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) restockRecord(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Delta int `json:"delta"`
	}
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.app.Records.Restock(r.Context(), mux.Vars(r)["id"], payload.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) setRecordCover(w http.ResponseWriter, r *http.Request) {
	rec, previous, err := h.app.Records.SetCover(r.Context(), mux.Vars(r)["id"], middleware.UploadedFile(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.removeUpload(r, previous)
	internalhttputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) removeUpload(r *http.Request, name string) {
	if name == "" {
		return
	}
	if err := h.uploads.Remove(name); err != nil {
		h.log.WithContext(r.Context()).WithError(err).WithField("file", name).Warn("remove replaced upload")
	}
}
