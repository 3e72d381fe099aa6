package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"whatsapp-crm/internal/bot"
	"whatsapp-crm/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// --- MessageStore ---

func (s *GormStore) Save(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *GormStore) UpdateStatusByWamid(ctx context.Context, wamid, status string) error {
	var msg models.Message
	err := s.db.WithContext(ctx).Where("wamid = ?", wamid).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Status can arrive before or without the message; not an error.
		return nil
	}
	if err != nil {
		return err
	}

	if !models.StatusAdvances(msg.Status, status) {
		return nil
	}

	return s.db.WithContext(ctx).Model(&models.Message{}).
		Where("wamid = ?", wamid).
		Update("status", status).Error
}

func (s *GormStore) HasWamid(ctx context.Context, wamid string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("wamid = ?", wamid).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ListByPhone(ctx context.Context, variants []string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("telefone IN ?", variants).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *GormStore) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// --- LeadStore ---

func (s *GormStore) GetOrCreate(ctx context.Context, telefone, nome string) (*models.Lead, error) {
	if nome == "" {
		suffix := telefone
		if len(suffix) > 4 {
			suffix = suffix[len(suffix)-4:]
		}
		nome = "Lead " + suffix
	}

	lead := models.Lead{
		Telefone: telefone,
		Nome:     nome,
		Origem:   "whatsapp",
		Etapa:    "novo",
	}

	// Insert-if-absent on the unique telefone index; two concurrent
	// first contacts cannot create duplicate leads this way.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telefone"}},
			DoNothing: true,
		}).
		Create(&lead).Error
	if err != nil {
		return nil, err
	}

	if lead.ID != 0 {
		return &lead, nil
	}

	// Conflict path: the lead already existed, fetch it.
	var existing models.Lead
	if err := s.db.WithContext(ctx).Where("telefone = ?", telefone).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (s *GormStore) TouchLastContact(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ?", id).
		Update("ultimo_contato", now).Error
}

func (s *GormStore) List(ctx context.Context, f LeadFilter) ([]models.Lead, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).
		Where("arquivado = ?", false).
		Order("created_at DESC").
		Limit(limit)

	if f.LoteID != nil {
		query = query.Where("lote_id = ?", *f.LoteID)
	}
	if f.Etapa != "" {
		query = query.Where("etapa = ?", f.Etapa)
	}

	var leads []models.Lead
	err := query.Find(&leads).Error
	return leads, err
}

func (s *GormStore) Get(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *GormStore) Update(ctx context.Context, id uint, fields map[string]any) (*models.Lead, error) {
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *GormStore) ListByLote(ctx context.Context, loteID uint) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Where("lote_id = ? AND arquivado = ?", loteID, false).
		Find(&leads).Error
	return leads, err
}

// --- LoteStore ---

func (s *GormStore) ListLotes(ctx context.Context) ([]models.Lote, error) {
	var lotes []models.Lote
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&lotes).Error
	return lotes, err
}

func (s *GormStore) CreateLote(ctx context.Context, lote *models.Lote) error {
	return s.db.WithContext(ctx).Create(lote).Error
}

// --- BotStore / bot.RuleSource ---

func (s *GormStore) ListResponses(ctx context.Context) ([]models.BotResponse, error) {
	var responses []models.BotResponse
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&responses).Error
	return responses, err
}

func (s *GormStore) CreateResponse(ctx context.Context, r *models.BotResponse) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *GormStore) ToggleResponse(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.BotResponse{}).
		Where("id = ?", id).
		Update("active", gorm.Expr("NOT active")).Error
}

func (s *GormStore) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.WithContext(ctx).Find(&templates).Error
	return templates, err
}

// ActiveRules feeds the trigger matcher from the bot_responses table,
// in stored order (first match wins).
func (s *GormStore) ActiveRules(ctx context.Context) ([]bot.Rule, error) {
	var responses []models.BotResponse
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&responses).Error
	if err != nil {
		return nil, err
	}

	rules := make([]bot.Rule, 0, len(responses))
	for _, r := range responses {
		rules = append(rules, bot.Rule{Trigger: r.Trigger, Response: r.Response})
	}
	return rules, nil
}

// templateComponents is the slice of the template components JSON the
// matcher cares about.
type templateComponents struct {
	Buttons []struct {
		Text     string `json:"text"`
		Response string `json:"response"`
	} `json:"buttons"`
}

// TemplateButtons extracts button/response pairs embedded in template
// components, the secondary trigger source.
func (s *GormStore) TemplateButtons(ctx context.Context) ([]bot.ButtonRule, error) {
	templates, err := s.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	var buttons []bot.ButtonRule
	for _, t := range templates {
		if t.Components == "" {
			continue
		}
		var comps templateComponents
		if err := json.Unmarshal([]byte(t.Components), &comps); err != nil {
			log.Printf("Skipping template %q: bad components JSON: %v", t.Name, err)
			continue
		}
		for _, b := range comps.Buttons {
			buttons = append(buttons, bot.ButtonRule{Text: b.Text, Response: b.Response})
		}
	}
	return buttons, nil
}

// --- WebhookLogStore ---

// Log archives a webhook payload; failures are logged and swallowed so
// the webhook path never depends on it.
func (s *GormStore) Log(ctx context.Context, tipo, payload string) {
	entry := models.WebhookLog{Tipo: tipo, Payload: payload, Processado: true}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("Error saving webhook log: %v", err)
	}
}
