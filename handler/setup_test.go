package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/licito/backend/model"
	"github.com/licito/backend/service"
	"github.com/licito/backend/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "segredo1"

func strPtr(s string) *string { return &s }

type testEnv struct {
	store    *store.Memory
	admin    *model.User
	manager  *model.User
	adm      *model.User
	tec      *model.User
	auth     *model.User
	inactive *model.User
	contract *model.Contract
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now()
	mk := func(id, name, email string, role model.Role, active bool) *model.User {
		u := &model.User{ID: id, Name: name, Email: email, PasswordHash: string(hash), Role: role, IsActive: active, CreatedAt: now, UpdatedAt: now}
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		return u
	}

	env := &testEnv{
		store:    s,
		admin:    mk("u-admin", "Admin", "admin@orgao.gov.br", model.RoleAdmin, true),
		manager:  mk("u-manager", "Maria Gestora", "maria@orgao.gov.br", model.RoleManager, true),
		adm:      mk("u-adm", "Ana Fiscal", "ana@orgao.gov.br", model.RoleFiscalAdministrative, true),
		tec:      mk("u-tec", "Tiago Técnico", "tiago@orgao.gov.br", model.RoleFiscalTechnical, true),
		auth:     mk("u-auth", "Olga Ordenadora", "olga@orgao.gov.br", model.RoleExpenditureAuthorizer, true),
		inactive: mk("u-off", "Inativo", "inativo@orgao.gov.br", model.RoleManager, false),
	}

	for i, d := range []*model.ChecklistDefinition{
		{ID: "d-adm-1", Text: "Certidões regulares", Type: model.FiscalAdministrative, Position: 1},
		{ID: "d-tec-1", Text: "Serviço executado", Type: model.FiscalTechnical, Position: 1},
	} {
		d.CreatedAt = now.Add(time.Duration(i) * time.Second)
		if err := s.CreateDefinition(ctx, d); err != nil {
			t.Fatalf("CreateDefinition: %v", err)
		}
	}

	c := &model.Contract{
		ID:                    "c-1",
		Number:                "001/2025",
		Object:                "Limpeza predial",
		EffectiveStart:        now.AddDate(0, -1, 0),
		EffectiveEnd:          now.AddDate(1, 0, 0),
		TotalValue:            50000,
		Manager:               model.Responsible{UserID: strPtr("u-manager")},
		AdministrativeFiscal:  model.Responsible{UserID: strPtr("u-adm")},
		TechnicalFiscal:       model.Responsible{UserID: strPtr("u-tec")},
		ExpenditureAuthorizer: model.Responsible{UserID: strPtr("u-auth")},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.CreateContract(ctx, c); err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	if err := s.EnsureItems(ctx, c.ID, now); err != nil {
		t.Fatalf("EnsureItems: %v", err)
	}
	env.contract = c
	return env
}

// itemID returns the id of the contract item for a definition
func (e *testEnv) itemID(t *testing.T, defID string) string {
	t.Helper()
	items, err := e.store.ListItems(context.Background(), e.contract.ID, "")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	for _, it := range items {
		if it.DefinitionID == defID {
			return it.ID
		}
	}
	t.Fatalf("no item for %s", defID)
	return ""
}

// as runs h with the session of u, the way AuthMiddleware would
func as(u *model.User, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", u.ID)
		c.Set("role", u.Role)
		c.Set("name", u.Name)
		h(c)
	}
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decode(t, w, &body)
	msg, _ := body["error"].(string)
	return msg
}

type stubEmail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubEmail) Send(_ context.Context, e service.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, e.To)
	return nil
}

type stubWhatsApp struct {
	phones []string
	err    error
}

func (s *stubWhatsApp) SendText(_ context.Context, phone, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.phones = append(s.phones, phone)
	return nil
}
