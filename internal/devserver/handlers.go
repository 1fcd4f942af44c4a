package devserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mesa/internal/modules/order"
	"mesa/internal/types"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) List(c *gin.Context) {
	orders, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	o, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type updateStateReq struct {
	State order.Status `json:"state"`
}

// UpdateState enforces the canonical adjacency server-side: the client's
// policy should never offer an illegal move, but the backend is the
// enforcing side.
func (h *Handler) UpdateState(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req updateStateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if _, err := order.MetaFor(req.State); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state"})
		return
	}

	ctx := c.Request.Context()
	o, err := h.store.Get(ctx, id)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if !order.CanTransition(o.Status, req.State) {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid state transition"})
		return
	}
	ok, err := h.store.UpdateStatus(ctx, id, o.Status, req.State)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		writeStoreError(c, ErrConflict)
		return
	}
	_ = h.store.AppendEvent(ctx, id, o.Status, req.State, c.GetHeader("X-Actor-Role"))

	updated, err := h.store.Get(ctx, id)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	ok, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		writeStoreError(c, ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "order state conflict"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
