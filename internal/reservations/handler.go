package reservations

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bibliohub/pkg/liberr"
	"bibliohub/pkg/models"
)

type Handler struct {
	Svc  *Service
	Repo *Repo
}

func NewHandler(svc *Service, repo *Repo) *Handler {
	return &Handler{Svc: svc, Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:id", h.getByID)
	rg.POST("", h.create)
	rg.POST("/:id/notify", h.notify)
	rg.POST("/:id/fulfill", h.fulfill)
	rg.POST("/:id/cancel", h.cancel)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.remove)
}

// RegisterQueueRoute hangs the ordered waiting-list view off the books
// group: GET /books/:id/queue.
func (h *Handler) RegisterQueueRoute(rg *gin.RouterGroup) {
	rg.GET("/:id/queue", h.queue)
}

type createReq struct {
	BookID          string     `json:"book_id" binding:"required"`
	BorrowerName    string     `json:"borrower_name" binding:"required"`
	BorrowerEmail   string     `json:"borrower_email" binding:"required,email"`
	BorrowerPhone   string     `json:"borrower_phone"`
	ReservationDate *time.Time `json:"reservation_date"`
	Notes           string     `json:"notes"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation payload: " + err.Error()})
		return
	}

	p := CreateParams{
		BookID:        strings.TrimSpace(req.BookID),
		BorrowerName:  strings.TrimSpace(req.BorrowerName),
		BorrowerEmail: strings.TrimSpace(req.BorrowerEmail),
		BorrowerPhone: strings.TrimSpace(req.BorrowerPhone),
		Notes:         req.Notes,
	}
	if req.ReservationDate != nil {
		p.ReservationDate = *req.ReservationDate
	}

	saved, err := h.Svc.Create(c.Request.Context(), p)
	if err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, h.Svc.Present(saved))
}

func (h *Handler) notify(c *gin.Context) {
	saved, err := h.Svc.Notify(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Svc.Present(saved))
}

func (h *Handler) fulfill(c *gin.Context) {
	saved, err := h.Svc.Fulfill(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) cancel(c *gin.Context) {
	saved, err := h.Svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

type updateReq struct {
	BorrowerName  *string `json:"borrower_name"`
	BorrowerEmail *string `json:"borrower_email" binding:"omitempty,email"`
	BorrowerPhone *string `json:"borrower_phone"`
	Notes         *string `json:"notes"`
}

// update edits contact details and notes only; status, priority and the
// date fields move exclusively through the queue operations.
func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation payload: " + err.Error()})
		return
	}

	res, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if terminal(res.Status) {
		c.JSON(http.StatusConflict, gin.H{"error": "closed reservations cannot be edited"})
		return
	}

	if req.BorrowerName != nil {
		res.BorrowerName = strings.TrimSpace(*req.BorrowerName)
	}
	if req.BorrowerEmail != nil {
		res.BorrowerEmail = strings.TrimSpace(*req.BorrowerEmail)
	}
	if req.BorrowerPhone != nil {
		res.BorrowerPhone = strings.TrimSpace(*req.BorrowerPhone)
	}
	if req.Notes != nil {
		res.Notes = *req.Notes
	}

	if err := h.Repo.UpdateContact(c.Request.Context(), *res); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), res.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	c.JSON(http.StatusOK, h.Svc.Present(saved))
}

func (h *Handler) remove(c *gin.Context) {
	ok, err := h.Repo.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Status: c.Query("status"),
		BookID: c.Query("book_id"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}

	items, total, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	for i := range items {
		h.Svc.Present(&items[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	res, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, h.Svc.Present(res))
}

func (h *Handler) queue(c *gin.Context) {
	bookID := strings.TrimSpace(c.Param("id"))
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book id required"})
		return
	}

	queue, err := h.Svc.Queue(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book_id": bookID,
		"items":   queue,
	})
}

func terminal(status string) bool {
	switch status {
	case models.ReservationFulfilled, models.ReservationCancelled, models.ReservationExpired:
		return true
	}
	return false
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
