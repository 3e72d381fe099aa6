package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whatsapp-crm/internal/bot"
	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

//
// Test fakes - only for this file.
//

type fakeMessageStore struct {
	saved       []models.Message
	statusCalls []statusCall
	knownWamids map[string]bool
}

type statusCall struct {
	wamid  string
	status string
}

func (s *fakeMessageStore) Save(ctx context.Context, msg *models.Message) error {
	s.saved = append(s.saved, *msg)
	return nil
}

func (s *fakeMessageStore) UpdateStatusByWamid(ctx context.Context, wamid, status string) error {
	s.statusCalls = append(s.statusCalls, statusCall{wamid: wamid, status: status})
	return nil
}

func (s *fakeMessageStore) HasWamid(ctx context.Context, wamid string) (bool, error) {
	return s.knownWamids[wamid], nil
}

func (s *fakeMessageStore) ListByPhone(ctx context.Context, variants []string, limit int) ([]models.Message, error) {
	return nil, nil
}

func (s *fakeMessageStore) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	return nil, nil
}

type fakeLeadStore struct {
	leads       map[string]*models.Lead
	nextID      uint
	touchCalls  []uint
	createCalls int
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{leads: map[string]*models.Lead{}, nextID: 1}
}

func (s *fakeLeadStore) GetOrCreate(ctx context.Context, telefone, nome string) (*models.Lead, error) {
	if lead, ok := s.leads[telefone]; ok {
		return lead, nil
	}
	s.createCalls++
	lead := &models.Lead{ID: s.nextID, Telefone: telefone, Nome: nome}
	s.nextID++
	s.leads[telefone] = lead
	return lead, nil
}

func (s *fakeLeadStore) TouchLastContact(ctx context.Context, id uint) error {
	s.touchCalls = append(s.touchCalls, id)
	return nil
}

func (s *fakeLeadStore) List(ctx context.Context, f store.LeadFilter) ([]models.Lead, error) {
	return nil, nil
}

func (s *fakeLeadStore) Get(ctx context.Context, id uint) (*models.Lead, error) {
	return nil, nil
}

func (s *fakeLeadStore) Update(ctx context.Context, id uint, fields map[string]any) (*models.Lead, error) {
	return nil, nil
}

func (s *fakeLeadStore) ListByLote(ctx context.Context, loteID uint) ([]models.Lead, error) {
	return nil, nil
}

type fakeSender struct {
	sendCalls []sendCall
	readCalls []string
	sendErr   error
}

type sendCall struct {
	to   string
	body string
}

func (s *fakeSender) SendText(ctx context.Context, to, body string) (*whatsapp.SendResult, error) {
	s.sendCalls = append(s.sendCalls, sendCall{to: to, body: body})
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &whatsapp.SendResult{MessageID: fmt.Sprintf("wamid.out%d", len(s.sendCalls))}, nil
}

func (s *fakeSender) MarkRead(ctx context.Context, wamid string) error {
	s.readCalls = append(s.readCalls, wamid)
	return nil
}

type fakeRuleSource struct {
	rules []bot.Rule
}

func (f *fakeRuleSource) ActiveRules(ctx context.Context) ([]bot.Rule, error) {
	return f.rules, nil
}

func (f *fakeRuleSource) TemplateButtons(ctx context.Context) ([]bot.ButtonRule, error) {
	return nil, nil
}

//
// Harness
//

func newTestHandler(rules []bot.Rule) (*Handler, *fakeMessageStore, *fakeLeadStore, *fakeSender) {
	messages := &fakeMessageStore{knownWamids: map[string]bool{}}
	leads := newFakeLeadStore()
	sender := &fakeSender{}

	h := NewHandler(
		&config.Config{VerifyToken: "secret-token"},
		messages,
		leads,
		bot.NewMatcher(&fakeRuleSource{rules: rules}),
		sender,
	)
	h.AutoReplyDelay = 0
	return h, messages, leads, sender
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", h.HandleDelivery)
	return r
}

func inboundText(wamid, from, body string) string {
	payload := map[string]any{
		"object": "whatsapp_business_account",
		"entry": []map[string]any{{
			"id": "entry-1",
			"changes": []map[string]any{{
				"field": "messages",
				"value": map[string]any{
					"contacts": []map[string]any{{
						"wa_id":   from,
						"profile": map[string]string{"name": "Fulano"},
					}},
					"messages": []map[string]any{{
						"from":      from,
						"id":        wamid,
						"timestamp": "1714857600",
						"type":      "text",
						"text":      map[string]string{"body": body},
					}},
				},
			}},
		}},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

//
// Handshake
//

func TestVerifyWebhook(t *testing.T) {
	h, _, _, _ := newTestHandler(nil)
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=challenge-42", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "challenge-42" {
		t.Errorf("body = %q, want the challenge echoed verbatim", w.Body.String())
	}
}

func TestVerifyWebhookWrongToken(t *testing.T) {
	h, _, _, _ := newTestHandler(nil)
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=x", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

//
// Delivery
//

func TestInboundTriggersAutoReply(t *testing.T) {
	h, messages, leads, sender := newTestHandler([]bot.Rule{
		{Trigger: "horario", Response: "8h-18h"},
	})
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(inboundText("wamid.in1", "5511988887777", "horário")))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	if len(messages.saved) != 2 {
		t.Fatalf("saved %d messages, want incoming + outgoing", len(messages.saved))
	}

	in := messages.saved[0]
	if in.Direcao != models.DirectionIncoming || in.Status != models.StatusReceived {
		t.Errorf("incoming = %+v", in)
	}
	if in.Telefone != "11988887777" {
		t.Errorf("incoming telefone = %q, want normalized form", in.Telefone)
	}
	if in.Conteudo != "horário" || in.Wamid != "wamid.in1" {
		t.Errorf("incoming content = %q wamid = %q", in.Conteudo, in.Wamid)
	}

	out := messages.saved[1]
	if out.Direcao != models.DirectionOutgoing || out.Status != models.StatusSent {
		t.Errorf("outgoing = %+v", out)
	}
	if out.Conteudo != "8h-18h" {
		t.Errorf("outgoing conteudo = %q, want 8h-18h", out.Conteudo)
	}
	if out.Wamid == "" {
		t.Error("outgoing wamid not recorded")
	}

	if len(sender.sendCalls) != 1 {
		t.Fatalf("sendCalls = %d, want exactly 1", len(sender.sendCalls))
	}
	if sender.sendCalls[0].to != "5511988887777" {
		t.Errorf("auto-reply to = %q, want outbound format", sender.sendCalls[0].to)
	}
	if len(sender.readCalls) != 1 || sender.readCalls[0] != "wamid.in1" {
		t.Errorf("readCalls = %v", sender.readCalls)
	}

	if leads.createCalls != 1 || len(leads.touchCalls) != 1 {
		t.Errorf("lead calls: create=%d touch=%v", leads.createCalls, leads.touchCalls)
	}
}

func TestInboundNoMatchSendsNothing(t *testing.T) {
	h, messages, _, sender := newTestHandler([]bot.Rule{
		{Trigger: "horario", Response: "8h-18h"},
	})
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(inboundText("wamid.in2", "5511988887777", "xyzxyz")))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sender.sendCalls) != 0 {
		t.Errorf("sendCalls = %d, want 0 on unmatched input", len(sender.sendCalls))
	}
	if len(messages.saved) != 1 {
		t.Errorf("saved %d messages, want only the incoming one", len(messages.saved))
	}
}

func TestMediaNeverTriggers(t *testing.T) {
	h, messages, _, sender := newTestHandler([]bot.Rule{
		{Trigger: "foto", Response: "valeu!"},
	})
	r := newRouter(h)

	payload := `{"entry":[{"changes":[{"field":"messages","value":{"messages":[
		{"from":"5511988887777","id":"wamid.img1","type":"image",
		 "image":{"id":"media-1","mime_type":"image/jpeg","caption":"foto"}}
	]}}]}]}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(payload))
	r.ServeHTTP(w, req)

	if len(sender.sendCalls) != 0 {
		t.Errorf("image caption must not trigger an auto-reply")
	}
	if len(messages.saved) != 1 {
		t.Fatalf("saved = %d", len(messages.saved))
	}
	if got := messages.saved[0]; got.Conteudo != "foto" || got.MediaID != "media-1" || got.MediaMime != "image/jpeg" {
		t.Errorf("media extraction: %+v", got)
	}
}

func TestStatusUpdates(t *testing.T) {
	h, messages, _, _ := newTestHandler(nil)
	r := newRouter(h)

	payload := `{"entry":[{"changes":[{"field":"messages","value":{"statuses":[
		{"id":"wamid.a","status":"delivered","timestamp":"1714857600","recipient_id":"5511988887777"},
		{"id":"wamid.unknown","status":"read","timestamp":"1714857601","recipient_id":"5511988887777"}
	]}}]}]}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(payload))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with unknown wamids", w.Code)
	}
	if len(messages.statusCalls) != 2 {
		t.Fatalf("statusCalls = %v", messages.statusCalls)
	}
	if messages.statusCalls[0] != (statusCall{"wamid.a", "delivered"}) {
		t.Errorf("first status call = %+v", messages.statusCalls[0])
	}
	if len(messages.saved) != 0 {
		t.Error("status updates must not insert messages")
	}
}

func TestRedeliveredMessageSkipped(t *testing.T) {
	h, messages, _, sender := newTestHandler(nil)
	messages.knownWamids["wamid.dup"] = true
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(inboundText("wamid.dup", "5511988887777", "oi")))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(messages.saved) != 0 {
		t.Errorf("redelivered message was saved again")
	}
	if len(sender.readCalls) != 0 {
		t.Errorf("redelivered message was re-marked as read")
	}
}

func TestUnparseableBody(t *testing.T) {
	h, _, _, _ := newTestHandler(nil)
	r := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{not json"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 on total parse failure", w.Code)
	}
}
