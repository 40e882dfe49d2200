package loans

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
	rg.POST("/:id/renew", h.renew)
	rg.POST("/:id/return", h.returnLoan)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.remove)
}

// RegisterBorrowerRoutes exposes the per-borrower loan history.
func (h *Handler) RegisterBorrowerRoutes(rg *gin.RouterGroup) {
	rg.GET("/:email/loans", h.listByBorrower)
}

type createReq struct {
	BookID        string     `json:"book_id" binding:"required"`
	BorrowerName  string     `json:"borrower_name" binding:"required"`
	BorrowerEmail string     `json:"borrower_email" binding:"required,email"`
	BorrowerPhone string     `json:"borrower_phone"`
	LoanDate      *time.Time `json:"loan_date"`
	Notes         string     `json:"notes"`
	ReservationID string     `json:"reservation_id"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan payload: " + err.Error()})
		return
	}

	p := CreateParams{
		BookID:        strings.TrimSpace(req.BookID),
		BorrowerName:  strings.TrimSpace(req.BorrowerName),
		BorrowerEmail: strings.TrimSpace(req.BorrowerEmail),
		BorrowerPhone: strings.TrimSpace(req.BorrowerPhone),
		Notes:         req.Notes,
		ReservationID: strings.TrimSpace(req.ReservationID),
	}
	if req.LoanDate != nil {
		p.LoanDate = *req.LoanDate
	}

	saved, err := h.Svc.Create(c.Request.Context(), p)
	if err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) renew(c *gin.Context) {
	saved, err := h.Svc.Renew(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

type returnReq struct {
	ReturnDate *time.Time `json:"return_date"`
}

func (h *Handler) returnLoan(c *gin.Context) {
	var req returnReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid return payload"})
			return
		}
	}

	var returnDate time.Time
	if req.ReturnDate != nil {
		returnDate = *req.ReturnDate
	}

	saved, err := h.Svc.Return(c.Request.Context(), c.Param("id"), returnDate)
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

// update edits contact details and notes only. Dates, status, fine and
// renewal count move exclusively through the state machine operations,
// and a returned loan is immutable.
func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan payload: " + err.Error()})
		return
	}

	l, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if l == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if l.Status == models.LoanReturned {
		c.JSON(http.StatusConflict, gin.H{"error": "returned loans cannot be edited"})
		return
	}

	if req.BorrowerName != nil {
		l.BorrowerName = strings.TrimSpace(*req.BorrowerName)
	}
	if req.BorrowerEmail != nil {
		l.BorrowerEmail = strings.TrimSpace(*req.BorrowerEmail)
	}
	if req.BorrowerPhone != nil {
		l.BorrowerPhone = strings.TrimSpace(*req.BorrowerPhone)
	}
	if req.Notes != nil {
		l.Notes = *req.Notes
	}

	if err := h.Repo.UpdateContact(c.Request.Context(), *l); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), l.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
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

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	l, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if l == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) listByBorrower(c *gin.Context) {
	email := strings.TrimSpace(c.Param("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email required"})
		return
	}

	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)

	items, total, err := h.Repo.ListByBorrower(c.Request.Context(), email, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
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
