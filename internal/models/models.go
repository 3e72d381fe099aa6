package models

import (
	"time"
)

// Message directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message statuses as reported by the Cloud API, plus our own.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
	StatusReceived  = "received"
)

// statusRank orders delivery statuses so that an out-of-order webhook
// can never move a message backwards (e.g. read -> sent).
var statusRank = map[string]int{
	StatusPending:   0,
	StatusReceived:  0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    4,
}

// StatusAdvances reports whether moving from current to next is a
// forward transition. Unknown statuses are accepted as-is.
func StatusAdvances(current, next string) bool {
	curRank, okCur := statusRank[current]
	nextRank, okNext := statusRank[next]
	if !okCur || !okNext {
		return true
	}
	return nextRank >= curRank
}

// Message is one inbound or outbound WhatsApp message. Direcao is set on
// insert and never updated; only status and media fields may change.
type Message struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Wamid             string     `gorm:"type:varchar(128);index" json:"wamid,omitempty"`
	Telefone          string     `gorm:"type:varchar(20);index;not null" json:"telefone"`
	Tipo              string     `gorm:"type:varchar(30)" json:"tipo"`
	Conteudo          string     `gorm:"type:text" json:"conteudo"`
	Caption           string     `gorm:"type:text" json:"caption,omitempty"`
	Direcao           string     `gorm:"type:varchar(10);not null" json:"direcao"`
	Status            string     `gorm:"type:varchar(20)" json:"status"`
	MediaID           string     `gorm:"type:varchar(255)" json:"media_id,omitempty"`
	MediaURL          string     `gorm:"type:text" json:"media_url,omitempty"`
	MediaMime         string     `gorm:"type:varchar(100)" json:"media_mime,omitempty"`
	MediaFilename     string     `gorm:"type:varchar(255)" json:"media_filename,omitempty"`
	Metadata          string     `gorm:"type:text" json:"metadata,omitempty"`
	LeadID            *uint      `gorm:"index" json:"lead_id,omitempty"`
	TimestampWhatsApp *time.Time `json:"timestamp_whatsapp,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "mensagens"
}

// Lead is a contact tracked by the CRM. Telefone holds the canonical
// phone form and is unique, which makes first-contact creation an atomic
// insert-or-ignore instead of a racy lookup-then-insert.
type Lead struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Telefone      string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"telefone"`
	Nome          string     `gorm:"type:varchar(255)" json:"nome"`
	Email         string     `gorm:"type:varchar(255)" json:"email,omitempty"`
	Origem        string     `gorm:"type:varchar(50)" json:"origem"`
	Etapa         string     `gorm:"type:varchar(50)" json:"etapa"`
	Interesse     string     `gorm:"type:varchar(255)" json:"interesse,omitempty"`
	Responsavel   string     `gorm:"type:varchar(255)" json:"responsavel,omitempty"`
	Notas         string     `gorm:"type:text" json:"notas,omitempty"`
	Tags          string     `gorm:"type:text" json:"tags,omitempty"`
	LoteID        *uint      `gorm:"index" json:"lote_id,omitempty"`
	Arquivado     bool       `gorm:"default:false" json:"arquivado"`
	UltimoContato *time.Time `json:"ultimo_contato,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// Lote is a named batch of leads used for bulk outreach.
type Lote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Nome      string    `gorm:"type:varchar(255);not null" json:"nome"`
	Descricao string    `gorm:"type:text" json:"descricao"`
	Cor       string    `gorm:"type:varchar(20)" json:"cor"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Lote) TableName() string {
	return "lotes"
}

// BotResponse is a keyword -> reply rule for the auto-responder.
// Owned by the dashboard; the relay only reads active rules.
type BotResponse struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Trigger   string    `gorm:"type:varchar(255);not null" json:"trigger"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BotResponse) TableName() string {
	return "bot_responses"
}

// Template mirrors a WhatsApp message template. Components is the raw
// JSON; buttons embedded there act as a secondary trigger source.
type Template struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	Language   string    `gorm:"type:varchar(20)" json:"language"`
	Category   string    `gorm:"type:varchar(100)" json:"category"`
	Status     string    `gorm:"type:varchar(50)" json:"status"`
	Components string    `gorm:"type:text" json:"components"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Template) TableName() string {
	return "whatsapp_templates"
}

// WebhookLog archives raw webhook deliveries for debugging.
type WebhookLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Tipo       string    `gorm:"type:varchar(30)" json:"tipo"`
	Payload    string    `gorm:"type:text" json:"payload"`
	Processado bool      `gorm:"default:true" json:"processado"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}
