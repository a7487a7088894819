package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/licito/backend/model"
)

func (p *Postgres) CreateDefinition(ctx context.Context, d *model.ChecklistDefinition) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO checklist_definitions (id, text, type, position, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.Text, string(d.Type), d.Position, d.CreatedAt,
	)
	return translate(err)
}

func (p *Postgres) ListDefinitions(ctx context.Context, t model.FiscalType) ([]model.ChecklistDefinition, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, text, type, position, created_at
		FROM checklist_definitions
		WHERE ($1::text = '' OR type = $1::text)
		ORDER BY type, position, id`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []model.ChecklistDefinition
	for rows.Next() {
		var d model.ChecklistDefinition
		if err := rows.Scan(&d.ID, &d.Text, &d.Type, &d.Position, &d.CreatedAt); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (p *Postgres) EnsureItems(ctx context.Context, contractID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO checklist_items (id, contract_id, checklist_id, status, current_observation, created_at, updated_at)
		SELECT gen_random_uuid(), $1, d.id, 'PENDENTE', '', $2, $2
		FROM checklist_definitions d
		ON CONFLICT (contract_id, checklist_id) DO NOTHING`,
		contractID, at,
	)
	return translate(err)
}

const itemSelect = `
	SELECT i.id::text, i.contract_id::text, i.checklist_id::text, i.status, i.current_observation,
	       i.created_at, i.updated_at,
	       d.id::text, d.text, d.type, d.position, d.created_at
	FROM checklist_items i
	JOIN checklist_definitions d ON d.id = i.checklist_id`

func scanItem(row rowScanner) (model.ChecklistItem, error) {
	var it model.ChecklistItem
	var d model.ChecklistDefinition
	err := row.Scan(
		&it.ID, &it.ContractID, &it.DefinitionID, &it.Status, &it.CurrentObservation,
		&it.CreatedAt, &it.UpdatedAt,
		&d.ID, &d.Text, &d.Type, &d.Position, &d.CreatedAt,
	)
	it.Definition = &d
	return it, err
}

func (p *Postgres) ListItems(ctx context.Context, contractID string, t model.FiscalType) ([]model.ChecklistItem, error) {
	rows, err := p.db.QueryContext(ctx, itemSelect+`
		WHERE i.contract_id = $1 AND ($2::text = '' OR d.type = $2::text)
		ORDER BY d.type, d.position, d.id`, contractID, string(t))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var items []model.ChecklistItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachTrail(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *Postgres) GetItem(ctx context.Context, id string) (*model.ChecklistItem, error) {
	it, err := scanItem(p.db.QueryRowContext(ctx, itemSelect+` WHERE i.id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	items := []model.ChecklistItem{it}
	if err := p.attachTrail(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// attachTrail loads history and clarifications for the items, oldest first
func (p *Postgres) attachTrail(ctx context.Context, items []model.ChecklistItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[string]int, len(items))
	for i := range items {
		ids[i] = items[i].ID
		index[items[i].ID] = i
		items[i].History = []model.ObservationEntry{}
		items[i].Clarifications = []model.Clarification{}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, item_id::text, status, observation, author_id::text, author_name, author_email, created_at
		FROM observation_history
		WHERE item_id = ANY($1::uuid[])
		ORDER BY created_at, id`, pq.Array(ids))
	if err != nil {
		return err
	}
	for rows.Next() {
		var e model.ObservationEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Status, &e.Observation,
			&e.Author.ID, &e.Author.Name, &e.Author.Email, &e.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		i := index[e.ItemID]
		items[i].History = append(items[i].History, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = p.db.QueryContext(ctx, clarificationSelect+`
		WHERE item_id = ANY($1::uuid[])
		ORDER BY asked_at, id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanClarification(rows)
		if err != nil {
			return err
		}
		i := index[c.ItemID]
		items[i].Clarifications = append(items[i].Clarifications, *c)
	}
	return rows.Err()
}

func (p *Postgres) RecordObservation(ctx context.Context, e model.ObservationEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE checklist_items
		SET status = $2, current_observation = $3, updated_at = $4
		WHERE id = $1`,
		e.ItemID, string(e.Status), e.Observation, e.CreatedAt,
	)
	if err != nil {
		return translate(err)
	}
	if err := expectOne(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO observation_history (id, item_id, status, observation, author_id, author_name, author_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ItemID, string(e.Status), e.Observation, e.Author.ID, e.Author.Name, e.Author.Email, e.CreatedAt,
	); err != nil {
		return translate(err)
	}
	return tx.Commit()
}

const clarificationSelect = `
	SELECT id::text, item_id::text, question, answer,
	       asked_by_id::text, asked_by_name, asked_by_email,
	       answered_by_id::text, answered_by_name, answered_by_email,
	       asked_at, answered_at
	FROM clarifications`

func scanClarification(row rowScanner) (*model.Clarification, error) {
	var c model.Clarification
	var answer, byID, byName, byEmail sql.NullString
	var answeredAt sql.NullTime
	if err := row.Scan(&c.ID, &c.ItemID, &c.Question, &answer,
		&c.AskedBy.ID, &c.AskedBy.Name, &c.AskedBy.Email,
		&byID, &byName, &byEmail, &c.AskedAt, &answeredAt); err != nil {
		return nil, err
	}
	if answer.Valid {
		a := answer.String
		c.Answer = &a
	}
	if byID.Valid {
		c.AnsweredBy = &model.UserRef{ID: byID.String, Name: byName.String, Email: byEmail.String}
	}
	c.AnsweredAt = timePtr(answeredAt)
	return &c, nil
}

func (p *Postgres) CreateClarification(ctx context.Context, c *model.Clarification) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO clarifications (id, item_id, question, asked_by_id, asked_by_name, asked_by_email, asked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ItemID, c.Question, c.AskedBy.ID, c.AskedBy.Name, c.AskedBy.Email, c.AskedAt,
	)
	return translate(err)
}

func (p *Postgres) GetClarification(ctx context.Context, id string) (*model.Clarification, error) {
	c, err := scanClarification(p.db.QueryRowContext(ctx, clarificationSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (p *Postgres) AnswerClarification(ctx context.Context, id, answer string, by model.UserRef, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE clarifications
		SET answer = $2, answered_by_id = $3, answered_by_name = $4, answered_by_email = $5, answered_at = $6
		WHERE id = $1 AND answer IS NULL`,
		id, answer, by.ID, by.Name, by.Email, at,
	)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var answered bool
	if err := p.db.QueryRowContext(ctx,
		`SELECT answer IS NOT NULL FROM clarifications WHERE id = $1`, id,
	).Scan(&answered); err != nil {
		return translate(err)
	}
	if answered {
		return ErrConflict
	}
	return ErrNotFound
}
