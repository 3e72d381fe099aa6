package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/phone"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/webhook"
	"whatsapp-crm/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

// MessageSender is the slice of the provider client the send endpoint
// uses; faked in tests.
type MessageSender interface {
	Send(ctx context.Context, msg *whatsapp.OutboundMessage) (*whatsapp.SendResult, error)
}

type SendHandler struct {
	Client   MessageSender
	Messages store.MessageStore
	Leads    store.LeadStore
	Notifier webhook.Notifier
}

func NewSendHandler(client MessageSender, messages store.MessageStore, leads store.LeadStore) *SendHandler {
	return &SendHandler{Client: client, Messages: messages, Leads: leads}
}

type SendButton struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Title string `json:"title"`
}

// SendRequest accepts both the camelCase and snake_case field names the
// dashboard has historically sent.
type SendRequest struct {
	To           string       `json:"to"`
	Type         string       `json:"type"`
	Content      string       `json:"content"`
	Message      string       `json:"message"`
	Caption      string       `json:"caption"`
	Filename     string       `json:"filename"`
	TemplateName string       `json:"template_name"`
	Language     string       `json:"language"`
	MediaURL     string       `json:"mediaUrl"`
	MediaURLAlt  string       `json:"media_url"`
	Buttons      []SendButton `json:"buttons"`
	Footer       string       `json:"footer"`
	Header       bool         `json:"header"`
}

func (r *SendRequest) content() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Message
}

func (r *SendRequest) mediaURL() string {
	if r.MediaURL != "" {
		return r.MediaURL
	}
	return r.MediaURLAlt
}

var mediaTypes = map[string]bool{
	"image":    true,
	"video":    true,
	"audio":    true,
	"document": true,
}

// SendMessage translates a logical send request into the provider wire
// format, calls the provider and persists the outcome. Failed sends are
// not persisted; the provider error goes back to the caller.
func (h *SendHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	content := req.content()
	if req.To == "" || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": `Missing "to" or "content"`})
		return
	}

	if req.Type == "" {
		req.Type = "text"
	}

	formatted := phone.FormatOutbound(req.To)
	msg, err := buildOutbound(&req, formatted, content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	result, sendErr := h.Client.Send(ctx, msg)

	// Audio gets one automatic fallback as a plain text link; the
	// provider only accepts a narrow set of audio containers and the
	// dashboard does not transcode.
	if sendErr != nil && req.Type == "audio" {
		log.Printf("Audio send to %s failed (%v), retrying as text link", formatted, sendErr)
		result, sendErr = h.Client.Send(ctx, &whatsapp.OutboundMessage{
			To:   formatted,
			Type: "text",
			Text: &whatsapp.TextObj{Body: "🎵 Áudio: " + content},
		})
	}

	if sendErr != nil {
		var apiErr *whatsapp.APIError
		if errors.As(sendErr, &apiErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"error":      apiErr.Message,
				"error_code": apiErr.Code,
				"error_data": apiErr.Data,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": sendErr.Error()})
		return
	}

	h.persistOutgoing(ctx, &req, content, result.MessageID)

	c.JSON(http.StatusOK, gin.H{"success": true, "message_id": result.MessageID})
}

func (h *SendHandler) persistOutgoing(ctx context.Context, req *SendRequest, content, wamid string) {
	telefone := phone.Normalize(req.To)

	var leadID *uint
	lead, err := h.Leads.GetOrCreate(ctx, telefone, "")
	if err != nil {
		log.Printf("Error resolving lead for %s: %v", telefone, err)
	} else {
		leadID = &lead.ID
	}

	conteudo := content
	if req.Caption != "" {
		conteudo = req.Caption
	}

	now := time.Now().UTC()
	record := models.Message{
		Wamid:             wamid,
		Telefone:          telefone,
		Tipo:              req.Type,
		Conteudo:          conteudo,
		Caption:           req.Caption,
		Direcao:           models.DirectionOutgoing,
		Status:            models.StatusSent,
		LeadID:            leadID,
		TimestampWhatsApp: &now,
	}
	if mediaTypes[req.Type] {
		record.MediaURL = req.mediaURL()
		if record.MediaURL == "" {
			record.MediaURL = content
		}
	}

	if err := h.Messages.Save(ctx, &record); err != nil {
		log.Printf("Error saving outgoing message: %v", err)
		return
	}
	if h.Notifier != nil {
		h.Notifier.NotifyMessage(record)
	}
}

// buildOutbound maps the request type onto the provider payload shape.
func buildOutbound(req *SendRequest, to, content string) (*whatsapp.OutboundMessage, error) {
	msg := &whatsapp.OutboundMessage{To: to}

	switch req.Type {
	case "text":
		msg.Type = "text"
		msg.Text = &whatsapp.TextObj{Body: content}

	case "template":
		name := req.TemplateName
		if name == "" {
			name = content
		}
		language := req.Language
		if language == "" {
			language = "en_US"
		}
		msg.Type = "template"
		msg.Template = &whatsapp.TemplateObj{Name: name, Language: whatsapp.LanguageObj{Code: language}}

	case "image":
		msg.Type = "image"
		msg.Image = &whatsapp.MediaObj{Link: content, Caption: req.Caption}

	case "audio":
		msg.Type = "audio"
		msg.Audio = &whatsapp.MediaObj{Link: content}

	case "video":
		link := req.mediaURL()
		if link == "" {
			link = content
		}
		msg.Type = "video"
		msg.Video = &whatsapp.MediaObj{Link: link, Caption: req.Caption}

	case "document":
		msg.Type = "document"
		msg.Document = &whatsapp.MediaObj{Link: content, Caption: req.Caption, Filename: req.Filename}

	case "interactive", "interactive_buttons", "video_buttons":
		msg.Type = "interactive"
		msg.Interactive = buildInteractive(req, content)

	default:
		return nil, errUnknownType(req.Type)
	}

	return msg, nil
}

type errUnknownType string

func (e errUnknownType) Error() string {
	return "Unknown type: " + string(e)
}

// buildInteractive assembles a button message: up to 3 reply buttons,
// titles capped at the provider's 20-character limit, optional video
// header and footer.
func buildInteractive(req *SendRequest, content string) *whatsapp.InteractiveObj {
	buttons := req.Buttons
	if len(buttons) > 3 {
		buttons = buttons[:3]
	}

	replies := make([]whatsapp.ButtonObj, 0, len(buttons))
	for i, b := range buttons {
		id := b.ID
		if id == "" {
			id = fmt.Sprintf("btn_%d", i)
		}
		title := b.Text
		if title == "" {
			title = b.Title
		}
		replies = append(replies, whatsapp.ButtonObj{
			Type:  "reply",
			Reply: whatsapp.ReplyObj{ID: id, Title: truncate(title, 20)},
		})
	}

	interactive := &whatsapp.InteractiveObj{
		Type:   "button",
		Body:   whatsapp.BodyObj{Text: content},
		Action: whatsapp.ActionObj{Buttons: replies},
	}

	if req.Footer != "" {
		interactive.Footer = &whatsapp.FooterObj{Text: req.Footer}
	}

	mediaURL := req.mediaURL()
	wantsHeader := req.Type == "video_buttons" || (req.Header && mediaURL != "")
	if wantsHeader && mediaURL != "" {
		interactive.Header = &whatsapp.HeaderObj{
			Type:  "video",
			Video: &whatsapp.MediaObj{Link: mediaURL},
		}
	}

	return interactive
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
