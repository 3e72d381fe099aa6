package api

import (
	"net/http"
	"strconv"
	"time"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

// LeadNotifier receives lead updates for realtime fan-out.
type LeadNotifier interface {
	NotifyLead(lead *models.Lead)
}

type LeadsHandler struct {
	Leads    store.LeadStore
	Lotes    store.LoteStore
	Notifier LeadNotifier
}

func NewLeadsHandler(leads store.LeadStore, lotes store.LoteStore) *LeadsHandler {
	return &LeadsHandler{Leads: leads, Lotes: lotes}
}

func (h *LeadsHandler) GetLeads(c *gin.Context) {
	filter := store.LeadFilter{Etapa: c.Query("etapa")}

	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if raw := c.Query("lote_id"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 32); err == nil {
			id := uint(parsed)
			filter.LoteID = &id
		}
	}

	leads, err := h.Leads.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": leads})
}

func (h *LeadsHandler) GetLead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid lead id"})
		return
	}

	lead, err := h.Leads.Get(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Lead not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": lead})
}

// leadUpdateFields is the whitelist the dashboard may patch; everything
// else on the record belongs to the relay.
var leadUpdateFields = []string{
	"nome", "telefone", "email", "etapa", "origem", "notas", "tags",
	"lote_id", "arquivado", "interesse", "responsavel",
}

func (h *LeadsHandler) UpdateLead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid lead id"})
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	fields := map[string]any{}
	for _, key := range leadUpdateFields {
		if value, ok := body[key]; ok {
			fields[key] = value
		}
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No updatable fields in body"})
		return
	}

	lead, err := h.Leads.Update(c.Request.Context(), uint(id), fields)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if h.Notifier != nil {
		h.Notifier.NotifyLead(lead)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": lead})
}

func (h *LeadsHandler) GetLotes(c *gin.Context) {
	lotes, err := h.Lotes.ListLotes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if lotes == nil {
		lotes = []models.Lote{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": lotes})
}

type CreateLoteRequest struct {
	Nome      string `json:"nome"`
	Descricao string `json:"descricao"`
	Cor       string `json:"cor"`
}

func (h *LeadsHandler) CreateLote(c *gin.Context) {
	var req CreateLoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if req.Nome == "" {
		req.Nome = "Lote " + time.Now().Format("02/01/2006 15:04")
	}
	if req.Cor == "" {
		req.Cor = "#3B82F6"
	}

	lote := models.Lote{Nome: req.Nome, Descricao: req.Descricao, Cor: req.Cor}
	if err := h.Lotes.CreateLote(c.Request.Context(), &lote); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": lote})
}
