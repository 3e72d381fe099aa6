package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"whatsapp-crm/internal/phone"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

// TemplateSender is the slice of the provider client broadcasts use.
type TemplateSender interface {
	SendTemplate(ctx context.Context, to, name, language string) (*whatsapp.SendResult, error)
}

// BroadcastHandler sends a template to every lead in a lote (or an
// explicit contact list), sequentially with fixed spacing so the
// provider's rate limit is never hit. The throttle lives here, on the
// caller side; the send path itself stays unthrottled.
type BroadcastHandler struct {
	Client   TemplateSender
	Leads    store.LeadStore
	Interval time.Duration
}

func NewBroadcastHandler(client TemplateSender, leads store.LeadStore, interval time.Duration) *BroadcastHandler {
	return &BroadcastHandler{Client: client, Leads: leads, Interval: interval}
}

type BroadcastRequest struct {
	LoteID       *uint    `json:"lote_id"`
	Contacts     []string `json:"contacts"`
	TemplateName string   `json:"template_name" binding:"required"`
	Language     string   `json:"language"`
}

func (h *BroadcastHandler) SendBroadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if req.Language == "" {
		req.Language = "en_US"
	}

	ctx := c.Request.Context()
	recipients := append([]string(nil), req.Contacts...)

	if req.LoteID != nil {
		leads, err := h.Leads.ListByLote(ctx, *req.LoteID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		for _, lead := range leads {
			recipients = append(recipients, lead.Telefone)
		}
	}

	if len(recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No recipients"})
		return
	}

	sent := 0
	for i, telefone := range recipients {
		if i > 0 && h.Interval > 0 {
			time.Sleep(h.Interval)
		}

		_, err := h.Client.SendTemplate(ctx, phone.FormatOutbound(telefone), req.TemplateName, req.Language)
		if err != nil {
			log.Printf("Failed to broadcast to %s: %v", telefone, err)
			continue
		}
		sent++
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"sent": sent, "total": len(recipients)},
	})
}
