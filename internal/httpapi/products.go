package httpapi

import (
	"net/http"
	"strconv"

	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
)

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}
	var ok bool
	if f.Limit, ok = intParam(q.Get("limit")); !ok {
		writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if f.Offset, ok = intParam(q.Get("offset")); !ok {
		writeMessage(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	products, err := a.catalog.List(r.Context(), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func intParam(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil && n >= 0
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := a.decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.catalog.Create(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	var patch catalog.ProductPatch
	if err := a.decode(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.catalog.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Product deleted successfully")
}
