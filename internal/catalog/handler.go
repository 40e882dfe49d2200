package catalog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bibliohub/pkg/models"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterAuthorRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.listAuthors)
	rg.GET("/:id", h.getAuthor)
	rg.POST("", h.createAuthor)
	rg.PUT("/:id", h.updateAuthor)
	rg.DELETE("/:id", h.deleteAuthor)
}

func (h *Handler) RegisterCategoryRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.listCategories)
	rg.GET("/:id", h.getCategory)
	rg.POST("", h.createCategory)
	rg.PUT("/:id", h.updateCategory)
	rg.DELETE("/:id", h.deleteCategory)
}

type authorReq struct {
	Name        string `json:"name" binding:"required"`
	Nationality string `json:"nationality"`
	Bio         string `json:"bio"`
}

func (h *Handler) createAuthor(c *gin.Context) {
	var req authorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	a := models.Author{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Nationality: req.Nationality,
		Bio:         req.Bio,
	}
	saved, err := h.Repo.CreateAuthor(c.Request.Context(), a)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) getAuthor(c *gin.Context) {
	a, err := h.Repo.GetAuthor(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) listAuthors(c *gin.Context) {
	items, err := h.Repo.ListAuthors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) updateAuthor(c *gin.Context) {
	var req authorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	a := models.Author{
		ID:          c.Param("id"),
		Name:        strings.TrimSpace(req.Name),
		Nationality: req.Nationality,
		Bio:         req.Bio,
	}
	ok, err := h.Repo.UpdateAuthor(c.Request.Context(), a)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	saved, err := h.Repo.GetAuthor(c.Request.Context(), a.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) deleteAuthor(c *gin.Context) {
	ok, err := h.Repo.DeleteAuthor(c.Request.Context(), c.Param("id"))
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

type categoryReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) createCategory(c *gin.Context) {
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	cat := models.Category{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	saved, err := h.Repo.CreateCategory(c.Request.Context(), cat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) getCategory(c *gin.Context) {
	cat, err := h.Repo.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if cat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *Handler) listCategories(c *gin.Context) {
	items, err := h.Repo.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) updateCategory(c *gin.Context) {
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	cat := models.Category{
		ID:          c.Param("id"),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	ok, err := h.Repo.UpdateCategory(c.Request.Context(), cat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	saved, err := h.Repo.GetCategory(c.Request.Context(), cat.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	ok, err := h.Repo.DeleteCategory(c.Request.Context(), c.Param("id"))
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
