// Package whatsapp is the client for the WhatsApp Business Cloud API.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"whatsapp-crm/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type Client struct {
	http          *resty.Client
	phoneNumberID string
}

func NewClient(cfg *config.Config) *Client {
	client := resty.New().
		SetBaseURL(cfg.GraphAPIURL).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.WhatsAppToken)

	return &Client{
		http:          client,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// --- Outbound wire structures ---

type OutboundMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type,omitempty"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             *TextObj        `json:"text,omitempty"`
	Image            *MediaObj       `json:"image,omitempty"`
	Video            *MediaObj       `json:"video,omitempty"`
	Audio            *MediaObj       `json:"audio,omitempty"`
	Document         *MediaObj       `json:"document,omitempty"`
	Template         *TemplateObj    `json:"template,omitempty"`
	Interactive      *InteractiveObj `json:"interactive,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type MediaObj struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"` // For documents
}

type TemplateObj struct {
	Name     string      `json:"name"`
	Language LanguageObj `json:"language"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

type InteractiveObj struct {
	Type   string     `json:"type"`
	Header *HeaderObj `json:"header,omitempty"`
	Body   BodyObj    `json:"body"`
	Footer *FooterObj `json:"footer,omitempty"`
	Action ActionObj  `json:"action"`
}

type HeaderObj struct {
	Type  string    `json:"type"`
	Text  string    `json:"text,omitempty"`
	Video *MediaObj `json:"video,omitempty"`
	Image *MediaObj `json:"image,omitempty"`
}

type BodyObj struct {
	Text string `json:"text"`
}

type FooterObj struct {
	Text string `json:"text"`
}

type ActionObj struct {
	Buttons []ButtonObj `json:"buttons,omitempty"`
}

type ButtonObj struct {
	Type  string   `json:"type"`
	Reply ReplyObj `json:"reply"`
}

type ReplyObj struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// --- Responses ---

type SendResult struct {
	MessageID string
}

type graphResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *graphError `json:"error"`
}

type graphError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"error_data,omitempty"`
}

// APIError is a send the Cloud API rejected (bad phone, unsupported
// media, rate limit). Carries the provider's code and message so the
// caller can surface them.
type APIError struct {
	Message string
	Code    int
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error %d: %s", e.Code, e.Message)
}

// --- Messaging ---

// Send delivers one message and returns the provider message id.
func (c *Client) Send(ctx context.Context, msg *OutboundMessage) (*SendResult, error) {
	if msg.MessagingProduct == "" {
		msg.MessagingProduct = "whatsapp"
	}
	if msg.RecipientType == "" {
		msg.RecipientType = "individual"
	}

	var result graphResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetBody(msg).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/%s/messages", c.phoneNumberID))
	if err != nil {
		return nil, fmt.Errorf("failed to reach whatsapp api: %w", err)
	}

	if resp.IsError() || result.Error != nil {
		apiErr := &APIError{Message: "unknown error", Code: resp.StatusCode()}
		if result.Error != nil {
			apiErr.Message = result.Error.Message
			apiErr.Code = result.Error.Code
			apiErr.Data = result.Error.Data
		}
		return nil, apiErr
	}

	if len(result.Messages) == 0 {
		return nil, fmt.Errorf("whatsapp api returned no message id")
	}

	return &SendResult{MessageID: result.Messages[0].ID}, nil
}

func (c *Client) SendText(ctx context.Context, to, body string) (*SendResult, error) {
	return c.Send(ctx, &OutboundMessage{
		To:   to,
		Type: "text",
		Text: &TextObj{Body: body},
	})
}

func (c *Client) SendTemplate(ctx context.Context, to, name, language string) (*SendResult, error) {
	return c.Send(ctx, &OutboundMessage{
		To:       to,
		Type:     "template",
		Template: &TemplateObj{Name: name, Language: LanguageObj{Code: language}},
	})
}

// MarkRead tells the provider an inbound message was read. Best-effort;
// callers log and move on when it fails.
func (c *Client) MarkRead(ctx context.Context, wamid string) error {
	payload := map[string]string{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        wamid,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetBody(payload).
		Post(fmt.Sprintf("/%s/messages", c.phoneNumberID))
	if err != nil {
		return fmt.Errorf("failed to reach whatsapp api: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mark read failed: %s - %s", resp.Status(), resp.String())
	}
	return nil
}
