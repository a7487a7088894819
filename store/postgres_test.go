package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licito/backend/model"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Postgres) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgres(db)
}

var userRowColumns = []string{"id", "name", "email", "password_hash", "role", "whatsapp", "is_active", "last_login", "created_at", "updated_at"}

func contractRow(id string, managerID any) []driver.Value {
	values := []driver.Value{
		id, "001/2025", "PA-10/2025", "Pregão", "Limpeza predial", "Secretaria de Obras", nil,
		"Limpa Tudo LTDA", "12.345.678/0001-90", "João", "1133334444", "contato@limpatudo.br", "Rua A, 1",
		120000.0, "Seguro", 6000.0, nil,
		testNow.AddDate(0, -1, 0), testNow.AddDate(1, 0, 0), "IPCA", nil, "",
	}
	for i := range responsiblePrefixes {
		if i == 0 {
			values = append(values, managerID, "", "", "")
			continue
		}
		values = append(values, nil, "Nome Legado", "legado@orgao.gov.br", "11900000000")
	}
	return append(values, testNow, testNow)
}

func TestPostgresGetUser(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-1", "Maria", "maria@orgao.gov.br", "hash", "GESTOR_CONTRATO", "", true, nil, testNow, testNow)
	mock.ExpectQuery(`SELECT id::text, name, email`).
		WithArgs("u-1").
		WillReturnRows(rows)

	u, err := p.GetUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)
	assert.Nil(t, u.LastLogin)
	assert.True(t, u.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetUserNotFound(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := p.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUserDuplicate(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := p.CreateUser(context.Background(), &model.User{ID: "u-1", Email: "a@b.br", Role: model.RoleAdmin})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetContractAttachesUsers(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT c.id::text, c.number`).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows(contractColumns).AddRow(contractRow("c-1", "u-1")...))
	mock.ExpectQuery(`FROM users WHERE id = ANY\(\$1::uuid\[\]\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "Maria", "maria@orgao.gov.br", "hash", "GESTOR_CONTRATO", "5511988887777", true, nil, testNow, testNow))

	c, err := p.GetContract(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "001/2025", c.Number)
	assert.Equal(t, 120000.0, c.TotalValue)
	assert.Nil(t, c.SignedAt)
	require.NotNil(t, c.Manager.UserID)
	require.NotNil(t, c.Manager.User)
	assert.Equal(t, "maria@orgao.gov.br", c.Manager.ContactEmail())
	assert.Nil(t, c.TechnicalFiscal.UserID)
	assert.Equal(t, "legado@orgao.gov.br", c.TechnicalFiscal.ContactEmail())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListContractsScopedToFiscal(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`ILIKE \$1 .*c.adm_fiscal_id = \$2::uuid OR c.sub_fiscal_id = \$2::uuid`).
		WithArgs("%limpeza%", "u-2").
		WillReturnRows(sqlmock.NewRows(contractColumns))

	contracts, err := p.ListContracts(context.Background(), model.ContractFilter{
		Search:          " limpeza ",
		ResponsibleID:   "u-2",
		ResponsibleRole: model.RoleFiscalAdministrative,
	})
	require.NoError(t, err)
	assert.Empty(t, contracts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListContractsUnscopedRole(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	contracts, err := p.ListContracts(context.Background(), model.ContractFilter{
		ResponsibleID:   "u-1",
		ResponsibleRole: model.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Empty(t, contracts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateContractNotFound(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE contracts SET number = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	c := &model.Contract{ID: "c-9", Number: "009/2025", EffectiveEnd: testNow}
	err := p.UpdateContract(context.Background(), c)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordObservation(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	e := model.ObservationEntry{
		ID: "h-1", ItemID: "i-1", Status: model.ItemNonCompliant, Observation: "Certidão vencida",
		Author: model.UserRef{ID: "u-2", Name: "Ana", Email: "ana@orgao.gov.br"}, CreatedAt: testNow,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE checklist_items`).
		WithArgs("i-1", "NAO_CONFORME", "Certidão vencida", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO observation_history`).
		WithArgs("h-1", "i-1", "NAO_CONFORME", "Certidão vencida", "u-2", "Ana", "ana@orgao.gov.br", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, p.RecordObservation(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordObservationMissingItem(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE checklist_items`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := p.RecordObservation(context.Background(), model.ObservationEntry{ID: "h-1", ItemID: "missing", Status: model.ItemCompliant})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAnswerClarificationConflict(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE clarifications .* WHERE id = \$1 AND answer IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT answer IS NOT NULL FROM clarifications`).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"answered"}).AddRow(true))

	err := p.AnswerClarification(context.Background(), "q-1", "Nova", model.UserRef{ID: "u-3"}, testNow)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListItemsAttachesTrail(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM checklist_items i`).
		WithArgs("c-1", "ADMINISTRATIVA").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "contract_id", "checklist_id", "status", "current_observation", "created_at", "updated_at",
			"d_id", "text", "type", "position", "d_created_at",
		}).AddRow("i-1", "c-1", "d-1", "CONFORME", "Ok", testNow, testNow, "d-1", "Certidões regulares", "ADMINISTRATIVA", 1, testNow))
	mock.ExpectQuery(`FROM observation_history`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "status", "observation", "author_id", "author_name", "author_email", "created_at"}).
			AddRow("h-1", "i-1", "CONFORME", "Ok", "u-2", "Ana", "ana@orgao.gov.br", testNow))
	mock.ExpectQuery(`FROM clarifications`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "item_id", "question", "answer", "asked_by_id", "asked_by_name", "asked_by_email",
			"answered_by_id", "answered_by_name", "answered_by_email", "asked_at", "answered_at",
		}).AddRow("q-1", "i-1", "Qual a validade?", nil, "u-5", "Otávio", "otavio@orgao.gov.br", nil, nil, nil, testNow, nil))

	items, err := p.ListItems(context.Background(), "c-1", model.FiscalAdministrative)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ItemCompliant, items[0].Status)
	assert.Equal(t, "Certidões regulares", items[0].Definition.Text)
	require.Len(t, items[0].History, 1)
	assert.Equal(t, "Ana", items[0].History[0].Author.Name)
	require.Len(t, items[0].Clarifications, 1)
	assert.False(t, items[0].Clarifications[0].Answered())
	assert.Nil(t, items[0].Clarifications[0].AnsweredBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveMessageDuplicate(t *testing.T) {
	db, mock, p := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO chat_messages .* ON CONFLICT \(chat_id, id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	saved, err := p.SaveMessage(context.Background(), &model.ChatMessage{ID: "m-1", ChatID: "chat-1", Role: model.MessageUser})
	require.NoError(t, err)
	assert.False(t, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateSkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("001_init.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("001_init.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs("001_init.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
