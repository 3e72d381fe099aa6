package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"whatsapp-crm/internal/bot"
	"whatsapp-crm/internal/cache"
	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/phone"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/whatsapp"
	wire "whatsapp-crm/pkg/models"

	"github.com/gin-gonic/gin"
)

// Sender is the slice of the provider client the receiver needs.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResult, error)
	MarkRead(ctx context.Context, wamid string) error
}

// Notifier pushes persisted messages to dashboard subscribers.
type Notifier interface {
	NotifyMessage(msg models.Message)
}

type Handler struct {
	Config   *config.Config
	Messages store.MessageStore
	Leads    store.LeadStore
	Matcher  *bot.Matcher
	Sender   Sender
	Cache    cache.Cache
	Logs     store.WebhookLogStore
	Notifier Notifier

	// Pause before the auto-reply; zero in tests.
	AutoReplyDelay time.Duration
}

func NewHandler(cfg *config.Config, messages store.MessageStore, leads store.LeadStore, matcher *bot.Matcher, sender Sender) *Handler {
	return &Handler{
		Config:         cfg,
		Messages:       messages,
		Leads:          leads,
		Matcher:        matcher,
		Sender:         sender,
		AutoReplyDelay: cfg.AutoReplyDelay,
	}
}

// VerifyWebhook answers Meta's subscription handshake. Safe to invoke
// any number of times.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.Config.VerifyToken {
		log.Println("Webhook verified successfully!")
		c.String(http.StatusOK, challenge)
		return
	}

	c.Status(http.StatusForbidden)
}

// HandleDelivery ingests a webhook POST. Whatever happens to individual
// items, the provider gets a 200 back; anything else makes Meta disable
// the webhook. Only an unreadable body is a 500.
func (h *Handler) HandleDelivery(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var payload wire.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("Error parsing webhook payload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	if h.Logs != nil {
		h.Logs.Log(ctx, "incoming", string(body))
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			for _, status := range change.Value.Statuses {
				if err := h.Messages.UpdateStatusByWamid(ctx, status.ID, status.Status); err != nil {
					log.Printf("Error updating status for %s: %v", status.ID, err)
				}
			}

			var contact *wire.WebhookContact
			if len(change.Value.Contacts) > 0 {
				contact = &change.Value.Contacts[0]
			}
			for _, message := range change.Value.Messages {
				h.processIncoming(ctx, message, contact)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// processIncoming handles one inbound message. Errors are logged, never
// propagated: one bad item must not sink its siblings or the response.
func (h *Handler) processIncoming(ctx context.Context, message wire.WebhookMessage, contact *wire.WebhookContact) {
	wamid := message.ID
	telefone := phone.Normalize(message.From)

	if h.isDuplicate(ctx, wamid) {
		log.Printf("Skipping redelivered message %s", wamid)
		return
	}

	nome := ""
	if contact != nil {
		nome = contact.Profile.Name
	}

	var leadID *uint
	lead, err := h.Leads.GetOrCreate(ctx, telefone, nome)
	if err != nil {
		log.Printf("Error resolving lead for %s: %v", telefone, err)
	} else {
		leadID = &lead.ID
	}

	record := extractContent(message)
	record.Wamid = wamid
	record.Telefone = telefone
	record.Direcao = models.DirectionIncoming
	record.Status = models.StatusReceived
	record.LeadID = leadID
	if ts := parseTimestamp(message.Timestamp); ts != nil {
		record.TimestampWhatsApp = ts
	}

	if err := h.Messages.Save(ctx, &record); err != nil {
		// Provider-facing reliability beats completeness: keep going so
		// the webhook still acknowledges.
		log.Printf("Error saving message %s: %v", wamid, err)
	} else {
		h.rememberWamid(ctx, wamid)
		if h.Notifier != nil {
			h.Notifier.NotifyMessage(record)
		}
	}

	if leadID != nil {
		if err := h.Leads.TouchLastContact(ctx, *leadID); err != nil {
			log.Printf("Error updating ultimo_contato for lead %d: %v", *leadID, err)
		}
	}

	if err := h.Sender.MarkRead(ctx, wamid); err != nil {
		log.Printf("Error marking %s as read: %v", wamid, err)
	}

	log.Printf("Message received from %s: %.50s", telefone, record.Conteudo)

	h.maybeAutoReply(ctx, record, leadID)
}

// maybeAutoReply runs the trigger matcher and sends the reply. Only
// text, button and interactive messages can trigger.
func (h *Handler) maybeAutoReply(ctx context.Context, record models.Message, leadID *uint) {
	switch record.Tipo {
	case "text", "button", "interactive":
	default:
		return
	}
	if record.Conteudo == "" {
		return
	}

	reply, ok := h.Matcher.Match(ctx, record.Conteudo)
	if !ok {
		log.Printf("No auto-response for: %q", record.Conteudo)
		return
	}

	// A reply landing in the same instant the question arrived reads as
	// robotic; wait a beat.
	if h.AutoReplyDelay > 0 {
		time.Sleep(h.AutoReplyDelay)
	}

	result, err := h.Sender.SendText(ctx, phone.FormatOutbound(record.Telefone), reply)
	if err != nil {
		log.Printf("Error sending auto-reply to %s: %v", record.Telefone, err)
		return
	}

	now := time.Now().UTC()
	outgoing := models.Message{
		Wamid:             result.MessageID,
		Telefone:          record.Telefone,
		Tipo:              "text",
		Conteudo:          reply,
		Direcao:           models.DirectionOutgoing,
		Status:            models.StatusSent,
		LeadID:            leadID,
		TimestampWhatsApp: &now,
	}
	if err := h.Messages.Save(ctx, &outgoing); err != nil {
		log.Printf("Error saving auto-reply: %v", err)
		return
	}
	if h.Notifier != nil {
		h.Notifier.NotifyMessage(outgoing)
	}

	log.Printf("Auto-reply sent to %s: %.50s", record.Telefone, reply)
}

// extractContent maps the type-specific payload shape onto conteudo and
// the media columns.
func extractContent(message wire.WebhookMessage) models.Message {
	record := models.Message{Tipo: message.Type}

	switch message.Type {
	case "text":
		if message.Text != nil {
			record.Conteudo = message.Text.Body
		}
	case "image":
		record.Conteudo = "[Imagem]"
		if message.Image != nil {
			if message.Image.Caption != "" {
				record.Conteudo = message.Image.Caption
			}
			record.MediaID = message.Image.ID
			record.MediaMime = message.Image.MimeType
		}
	case "audio":
		record.Conteudo = "[Áudio]"
		if message.Audio != nil {
			record.MediaID = message.Audio.ID
			record.MediaMime = message.Audio.MimeType
		}
	case "video":
		record.Conteudo = "[Vídeo]"
		if message.Video != nil {
			if message.Video.Caption != "" {
				record.Conteudo = message.Video.Caption
			}
			record.MediaID = message.Video.ID
			record.MediaMime = message.Video.MimeType
		}
	case "document":
		record.Conteudo = "[Documento]"
		if message.Document != nil {
			if message.Document.Caption != "" {
				record.Conteudo = message.Document.Caption
			}
			record.MediaID = message.Document.ID
			record.MediaMime = message.Document.MimeType
			record.MediaFilename = message.Document.Filename
		}
	case "sticker":
		record.Conteudo = "[Sticker]"
		if message.Sticker != nil {
			record.MediaID = message.Sticker.ID
			record.MediaMime = message.Sticker.MimeType
		}
	case "location":
		record.Conteudo = "📍 Localização"
		if message.Location != nil {
			if message.Location.Name != "" {
				record.Conteudo = "📍 " + message.Location.Name
			}
			meta, _ := json.Marshal(map[string]any{
				"latitude":  message.Location.Latitude,
				"longitude": message.Location.Longitude,
				"address":   message.Location.Address,
			})
			record.Metadata = string(meta)
		}
	case "button":
		record.Conteudo = "[Botão]"
		if message.Button != nil && message.Button.Text != "" {
			record.Conteudo = message.Button.Text
		}
	case "interactive":
		if message.Interactive != nil {
			switch message.Interactive.Type {
			case "button_reply":
				record.Conteudo = "[Resposta]"
				if message.Interactive.ButtonReply != nil {
					record.Conteudo = message.Interactive.ButtonReply.Title
				}
			case "list_reply":
				record.Conteudo = "[Lista]"
				if message.Interactive.ListReply != nil {
					record.Conteudo = message.Interactive.ListReply.Title
				}
			}
		}
	default:
		record.Conteudo = fmt.Sprintf("[%s]", message.Type)
	}

	return record
}

// isDuplicate checks the dedup cache first, then the store. The cache
// is optional; without it the store lookup still catches redeliveries.
func (h *Handler) isDuplicate(ctx context.Context, wamid string) bool {
	if wamid == "" {
		return false
	}
	if h.Cache != nil {
		if _, err := h.Cache.Get(ctx, "wamid:"+wamid); err == nil {
			return true
		}
	}
	seen, err := h.Messages.HasWamid(ctx, wamid)
	if err != nil {
		log.Printf("Error checking wamid %s: %v", wamid, err)
		return false
	}
	return seen
}

func (h *Handler) rememberWamid(ctx context.Context, wamid string) {
	if h.Cache == nil || wamid == "" {
		return
	}
	if err := h.Cache.Set(ctx, "wamid:"+wamid, "1", 24*time.Hour); err != nil {
		log.Printf("Error caching wamid %s: %v", wamid, err)
	}
}

func parseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	ts := time.Unix(secs, 0).UTC()
	return &ts
}
