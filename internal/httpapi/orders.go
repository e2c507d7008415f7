package httpapi

import (
	"net/http"

	"github.com/MrEthical07/storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

type createOrderRequest struct {
	Items []orders.ItemInput `json:"items"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.orders.Create(r.Context(), caller(r).UserID, req.Items)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (a *API) myOrders(w http.ResponseWriter, r *http.Request) {
	list, err := a.orders.ListForUser(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) allOrders(w http.ResponseWriter, r *http.Request) {
	list, err := a.orders.ListAll(r.Context(), a.actor(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.orders.Get(r.Context(), a.actor(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.orders.UpdateStatus(r.Context(), a.actor(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order status updated",
		"order":   o,
	})
}
