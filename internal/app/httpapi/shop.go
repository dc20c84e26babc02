package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/recordstore/internal/app/services/orders"
	internalhttputil "github.com/R3E-Network/recordstore/internal/httputil"
	"github.com/R3E-Network/recordstore/internal/middleware"
)

func (h *handler) cartRoutes(r *mux.Router) {
	r.Handle("/cart", h.user(h.getCart)).Methods(http.MethodGet)
	r.Handle("/cart", h.user(h.clearCart)).Methods(http.MethodDelete)
	r.Handle("/cart/items", h.user(h.addCartItem)).Methods(http.MethodPost)
	r.Handle("/cart/items/{record_id}", h.user(h.setCartItem)).Methods(http.MethodPut)
	r.Handle("/cart/items/{record_id}", h.user(h.removeCartItem)).Methods(http.MethodDelete)
}

func (h *handler) orderRoutes(r *mux.Router) {
	r.Handle("/orders", h.user(h.checkout)).Methods(http.MethodPost)
	r.Handle("/orders", h.user(h.listOrders)).Methods(http.MethodGet)
	r.Handle("/orders/{id}", h.user(h.getOrder)).Methods(http.MethodGet)
	r.Handle("/orders/{id}/cancel", h.user(h.cancelOrder)).Methods(http.MethodPost)
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Carts.Get(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Carts.Clear(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RecordID string `json:"record_id"`
		Amount   int    `json:"amount"`
	}
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.app.Carts.AddItem(r.Context(), middleware.GetUserID(r), payload.RecordID, payload.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount int `json:"amount"`
	}
	if err := internalhttputil.DecodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.app.Carts.SetItem(r.Context(), middleware.GetUserID(r), mux.Vars(r)["record_id"], payload.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Carts.RemoveItem(r.Context(), middleware.GetUserID(r), mux.Vars(r)["record_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, c)
}

func actor(r *http.Request) orders.Actor {
	return orders.Actor{UserID: middleware.GetUserID(r), Admin: isAdmin(r)}
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.app.Orders.Checkout(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Orders.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.app.Orders.Get(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.app.Orders.Cancel(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Orders.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, list)
}
