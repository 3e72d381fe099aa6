package api

import (
	"net/http"
	"strconv"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

// BotHandler manages the trigger rules. The relay only reads them; the
// dashboard owns creation and toggling.
type BotHandler struct {
	Store store.BotStore
}

func NewBotHandler(botStore store.BotStore) *BotHandler {
	return &BotHandler{Store: botStore}
}

func (h *BotHandler) GetResponses(c *gin.Context) {
	responses, err := h.Store.ListResponses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if responses == nil {
		responses = []models.BotResponse{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": responses})
}

type CreateResponseRequest struct {
	Trigger  string `json:"trigger" binding:"required"`
	Response string `json:"response" binding:"required"`
}

func (h *BotHandler) CreateResponse(c *gin.Context) {
	var req CreateResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	response := models.BotResponse{Trigger: req.Trigger, Response: req.Response, Active: true}
	if err := h.Store.CreateResponse(c.Request.Context(), &response); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": response})
}

func (h *BotHandler) ToggleResponse(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid response id"})
		return
	}

	if err := h.Store.ToggleResponse(c.Request.Context(), uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *BotHandler) GetTemplates(c *gin.Context) {
	templates, err := h.Store.ListTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": templates})
}
