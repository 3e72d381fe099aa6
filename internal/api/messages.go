package api

import (
	"net/http"
	"strconv"
	"time"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/phone"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	defaultMessageLimit = 50
	conversationWindow  = 500
)

type MessagesHandler struct {
	Messages store.MessageStore
}

func NewMessagesHandler(messages store.MessageStore) *MessagesHandler {
	return &MessagesHandler{Messages: messages}
}

func (h *MessagesHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "online",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetMessages returns the history for one phone, querying both the
// national and country-code variants so conversations never fork.
func (h *MessagesHandler) GetMessages(c *gin.Context) {
	telefone := c.Param("telefone")
	variants := phone.Variants(telefone)
	if len(variants) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid phone"})
		return
	}

	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.Messages.ListByPhone(c.Request.Context(), variants, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": messages})
}

// Conversation is one summary row per phone.
type Conversation struct {
	Telefone       string    `json:"telefone"`
	UltimaMensagem string    `json:"ultima_mensagem"`
	Tipo           string    `json:"tipo"`
	Direcao        string    `json:"direcao"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LeadID         *uint     `json:"lead_id,omitempty"`
	TotalMensagens int       `json:"total_mensagens"`
	NaoLidas       int       `json:"nao_lidas"`
}

// GetConversations groups the most recent messages into one row per
// phone with a running unread count (incoming messages still in the
// received state).
func (h *MessagesHandler) GetConversations(c *gin.Context) {
	messages, err := h.Messages.ListRecent(c.Request.Context(), conversationWindow)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	byPhone := make(map[string]*Conversation)
	order := make([]string, 0)

	// messages come newest-first, so the first one seen per phone is
	// the conversation's latest.
	for _, msg := range messages {
		conv, ok := byPhone[msg.Telefone]
		if !ok {
			conv = &Conversation{
				Telefone:       msg.Telefone,
				UltimaMensagem: msg.Conteudo,
				Tipo:           msg.Tipo,
				Direcao:        msg.Direcao,
				Status:         msg.Status,
				Timestamp:      msg.CreatedAt,
				LeadID:         msg.LeadID,
			}
			byPhone[msg.Telefone] = conv
			order = append(order, msg.Telefone)
		}

		conv.TotalMensagens++
		if msg.Direcao == models.DirectionIncoming && msg.Status == models.StatusReceived {
			conv.NaoLidas++
		}
	}

	conversations := make([]Conversation, 0, len(order))
	for _, tel := range order {
		conversations = append(conversations, *byPhone[tel])
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": conversations})
}
