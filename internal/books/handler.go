package books

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bibliohub/pkg/liberr"
	"bibliohub/pkg/models"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:id", h.getByID)
	rg.POST("", h.create)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.remove)
}

type createReq struct {
	Title           string `json:"title" binding:"required"`
	Author          string `json:"author" binding:"required"`
	ISBN            string `json:"isbn" binding:"required,isbnish"`
	Category        string `json:"category" binding:"required"`
	PublishedYear   int    `json:"published_year" binding:"omitempty,gte=0"`
	Publisher       string `json:"publisher"`
	Pages           int    `json:"pages" binding:"omitempty,gte=0"`
	Synopsis        string `json:"synopsis"`
	CoverURL        string `json:"cover_url"`
	Location        string `json:"location"`
	TotalCopies     *int   `json:"total_copies" binding:"omitempty,gte=0"`
	AvailableCopies *int   `json:"available_copies" binding:"omitempty,gte=0"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book payload: " + err.Error()})
		return
	}

	total := 1
	if req.TotalCopies != nil {
		total = *req.TotalCopies
	}
	available := total
	if req.AvailableCopies != nil {
		available = *req.AvailableCopies
	}
	available = clampCopies(available, total)

	b := models.Book{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		ISBN:            strings.TrimSpace(req.ISBN),
		Category:        strings.TrimSpace(req.Category),
		PublishedYear:   req.PublishedYear,
		Publisher:       req.Publisher,
		Pages:           req.Pages,
		Synopsis:        req.Synopsis,
		CoverURL:        req.CoverURL,
		Location:        req.Location,
		TotalCopies:     total,
		AvailableCopies: available,
	}

	saved, err := h.Repo.Create(c.Request.Context(), b)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

type updateReq struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	ISBN            *string `json:"isbn" binding:"omitempty,isbnish"`
	Category        *string `json:"category"`
	PublishedYear   *int    `json:"published_year" binding:"omitempty,gte=0"`
	Publisher       *string `json:"publisher"`
	Pages           *int    `json:"pages" binding:"omitempty,gte=0"`
	Synopsis        *string `json:"synopsis"`
	CoverURL        *string `json:"cover_url"`
	Location        *string `json:"location"`
	TotalCopies     *int    `json:"total_copies" binding:"omitempty,gte=0"`
	AvailableCopies *int    `json:"available_copies" binding:"omitempty,gte=0"`
}

func (h *Handler) update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book payload: " + err.Error()})
		return
	}

	b, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	applyUpdate(b, req)

	saved, err := h.Repo.Update(c.Request.Context(), *b)
	if err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// applyUpdate merges the partial request onto the stored row, then
// clamps the counters so 0 <= available <= total always holds.
// Availability is not an input; the repo derives it from the counters.
func applyUpdate(b *models.Book, req updateReq) {
	if req.Title != nil {
		b.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		b.Author = strings.TrimSpace(*req.Author)
	}
	if req.ISBN != nil {
		b.ISBN = strings.TrimSpace(*req.ISBN)
	}
	if req.Category != nil {
		b.Category = strings.TrimSpace(*req.Category)
	}
	if req.PublishedYear != nil {
		b.PublishedYear = *req.PublishedYear
	}
	if req.Publisher != nil {
		b.Publisher = *req.Publisher
	}
	if req.Pages != nil {
		b.Pages = *req.Pages
	}
	if req.Synopsis != nil {
		b.Synopsis = *req.Synopsis
	}
	if req.CoverURL != nil {
		b.CoverURL = *req.CoverURL
	}
	if req.Location != nil {
		b.Location = *req.Location
	}
	if req.TotalCopies != nil {
		b.TotalCopies = *req.TotalCopies
	}
	if req.AvailableCopies != nil {
		b.AvailableCopies = *req.AvailableCopies
	}
	b.AvailableCopies = clampCopies(b.AvailableCopies, b.TotalCopies)
}

func (h *Handler) remove(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(liberr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:         c.Query("q"),
		Category:  c.Query("category"),
		Available: c.Query("available") == "true",
		Limit:     parseInt(c.Query("limit"), 20),
		Offset:    parseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
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
	id := c.Param("id")
	b, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func clampCopies(available, total int) int {
	if available > total {
		available = total
	}
	if available < 0 {
		available = 0
	}
	return available
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
