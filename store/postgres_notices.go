package store

import (
	"context"

	"github.com/licito/backend/model"
)

func (p *Postgres) CreateNotice(ctx context.Context, n *model.ClarificationNotice) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO clarification_notices (id, contract_id, fiscal_type, message, sent_by_id, sent_by_name, sent_by_email, delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.ContractID, string(n.FiscalType), n.Message,
		n.SentBy.ID, n.SentBy.Name, n.SentBy.Email, n.Delivered, n.CreatedAt,
	)
	return translate(err)
}

func (p *Postgres) ListNotices(ctx context.Context, contractID string) ([]model.ClarificationNotice, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, contract_id::text, fiscal_type, message, sent_by_id::text, sent_by_name, sent_by_email, delivered, created_at
		FROM clarification_notices
		WHERE contract_id = $1
		ORDER BY created_at, id`, contractID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	notices := []model.ClarificationNotice{}
	for rows.Next() {
		var n model.ClarificationNotice
		if err := rows.Scan(&n.ID, &n.ContractID, &n.FiscalType, &n.Message,
			&n.SentBy.ID, &n.SentBy.Name, &n.SentBy.Email, &n.Delivered, &n.CreatedAt); err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}
