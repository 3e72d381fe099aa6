// Package store owns all database access. Handlers depend on these
// interfaces so tests can swap in fakes.
package store

import (
	"context"

	"whatsapp-crm/internal/models"
)

type MessageStore interface {
	Save(ctx context.Context, msg *models.Message) error
	// UpdateStatusByWamid advances a message's delivery status. Unknown
	// wamids and backwards transitions are silently ignored.
	UpdateStatusByWamid(ctx context.Context, wamid, status string) error
	HasWamid(ctx context.Context, wamid string) (bool, error)
	// ListByPhone returns messages for any of the phone variants,
	// oldest first, capped at limit.
	ListByPhone(ctx context.Context, variants []string, limit int) ([]models.Message, error)
	// ListRecent returns the most recent messages across all phones,
	// newest first, for conversation summaries.
	ListRecent(ctx context.Context, limit int) ([]models.Message, error)
}

type LeadFilter struct {
	LoteID *uint
	Etapa  string
	Limit  int
}

type LeadStore interface {
	// GetOrCreate resolves the lead for a canonical phone, inserting a
	// new one atomically when none exists.
	GetOrCreate(ctx context.Context, telefone, nome string) (*models.Lead, error)
	TouchLastContact(ctx context.Context, id uint) error
	List(ctx context.Context, f LeadFilter) ([]models.Lead, error)
	Get(ctx context.Context, id uint) (*models.Lead, error)
	Update(ctx context.Context, id uint, fields map[string]any) (*models.Lead, error)
	ListByLote(ctx context.Context, loteID uint) ([]models.Lead, error)
}

type LoteStore interface {
	ListLotes(ctx context.Context) ([]models.Lote, error)
	CreateLote(ctx context.Context, lote *models.Lote) error
}

type BotStore interface {
	ListResponses(ctx context.Context) ([]models.BotResponse, error)
	CreateResponse(ctx context.Context, r *models.BotResponse) error
	ToggleResponse(ctx context.Context, id uint) error
	ListTemplates(ctx context.Context) ([]models.Template, error)
}

type WebhookLogStore interface {
	Log(ctx context.Context, tipo, payload string)
}
