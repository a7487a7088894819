package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/licito/backend/model"
)

// Each responsible position is stored as four columns sharing a prefix
var responsiblePrefixes = []string{"manager", "adm_fiscal", "tec_fiscal", "sub_fiscal", "authorizer"}

var contractColumns = func() []string {
	cols := []string{
		"id", "number", "administrative_process", "bidding_modality", "object", "contracting_body", "signed_at",
		"contractor_name", "contractor_cnpj", "legal_representative", "contractor_phone", "contractor_email", "contractor_address",
		"total_value", "guarantee_type", "guarantee_value", "guarantee_valid_until",
		"effective_start", "effective_end", "adjustment_index", "adjustment_base_date", "administrative_sanction",
	}
	for _, p := range responsiblePrefixes {
		cols = append(cols, p+"_id", p+"_name", p+"_email", p+"_phone")
	}
	return append(cols, "created_at", "updated_at")
}()

func contractSelect() string {
	cols := make([]string, len(contractColumns))
	for i, c := range contractColumns {
		if c == "id" || strings.HasSuffix(c, "_id") {
			cols[i] = "c." + c + "::text"
			continue
		}
		cols[i] = "c." + c
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM contracts c"
}

func responsibles(c *model.Contract) []*model.Responsible {
	return []*model.Responsible{&c.Manager, &c.AdministrativeFiscal, &c.TechnicalFiscal, &c.SubstituteFiscal, &c.ExpenditureAuthorizer}
}

func contractArgs(c *model.Contract) []any {
	args := []any{
		c.ID, c.Number, c.AdministrativeProcess, c.BiddingModality, c.Object, c.ContractingBody, nullTime(c.SignedAt),
		c.ContractorName, c.ContractorCNPJ, c.LegalRepresentative, c.ContractorPhone, c.ContractorEmail, c.ContractorAddress,
		c.TotalValue, c.GuaranteeType, c.GuaranteeValue, nullTime(c.GuaranteeValidUntil),
		c.EffectiveStart, c.EffectiveEnd, c.AdjustmentIndex, nullTime(c.AdjustmentBaseDate), c.Sanction,
	}
	for _, r := range responsibles(c) {
		args = append(args, nullString(r.UserID), r.Name, r.Email, r.Phone)
	}
	return append(args, c.CreatedAt, c.UpdatedAt)
}

func scanContract(row rowScanner) (*model.Contract, error) {
	var c model.Contract
	var signedAt, guaranteeUntil, baseDate sql.NullTime
	dest := []any{
		&c.ID, &c.Number, &c.AdministrativeProcess, &c.BiddingModality, &c.Object, &c.ContractingBody, &signedAt,
		&c.ContractorName, &c.ContractorCNPJ, &c.LegalRepresentative, &c.ContractorPhone, &c.ContractorEmail, &c.ContractorAddress,
		&c.TotalValue, &c.GuaranteeType, &c.GuaranteeValue, &guaranteeUntil,
		&c.EffectiveStart, &c.EffectiveEnd, &c.AdjustmentIndex, &baseDate, &c.Sanction,
	}
	ids := make([]sql.NullString, len(responsiblePrefixes))
	rs := responsibles(&c)
	for i, r := range rs {
		dest = append(dest, &ids[i], &r.Name, &r.Email, &r.Phone)
	}
	dest = append(dest, &c.CreatedAt, &c.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.SignedAt = timePtr(signedAt)
	c.GuaranteeValidUntil = timePtr(guaranteeUntil)
	c.AdjustmentBaseDate = timePtr(baseDate)
	for i, r := range rs {
		if ids[i].Valid {
			id := ids[i].String
			r.UserID = &id
		}
	}
	return &c, nil
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

func (p *Postgres) CreateContract(ctx context.Context, c *model.Contract) error {
	query := fmt.Sprintf(`INSERT INTO contracts (%s) VALUES (%s)`,
		strings.Join(contractColumns, ", "), placeholders(1, len(contractColumns)))
	_, err := p.db.ExecContext(ctx, query, contractArgs(c)...)
	return translate(err)
}

func (p *Postgres) UpdateContract(ctx context.Context, c *model.Contract) error {
	// id is $1; created_at is never rewritten
	all := contractArgs(c)
	args := []any{all[0]}
	var sets []string
	for i, col := range contractColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		args = append(args, all[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	query := fmt.Sprintf(`UPDATE contracts SET %s WHERE id = $1`, strings.Join(sets, ", "))

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (p *Postgres) DeleteContract(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (p *Postgres) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	return p.getContract(ctx, contractSelect()+` WHERE c.id = $1`, id)
}

func (p *Postgres) GetContractByNumber(ctx context.Context, number string) (*model.Contract, error) {
	return p.getContract(ctx, contractSelect()+` WHERE c.number = $1`, number)
}

func (p *Postgres) getContract(ctx context.Context, query string, arg any) (*model.Contract, error) {
	c, err := scanContract(p.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, translate(err)
	}
	if err := p.attachUsers(ctx, []*model.Contract{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Postgres) ListContracts(ctx context.Context, f model.ContractFilter) ([]*model.Contract, error) {
	var where []string
	var args []any

	if term := strings.TrimSpace(f.Search); term != "" {
		args = append(args, "%"+term+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(c.number ILIKE $%d OR c.object ILIKE $%d OR c.contracting_body ILIKE $%d OR c.contractor_name ILIKE $%d)",
			n, n, n, n))
	}

	if f.ResponsibleID != "" {
		args = append(args, f.ResponsibleID)
		n := len(args)
		var cols []string
		switch f.ResponsibleRole {
		case model.RoleManager:
			cols = []string{"manager_id"}
		case model.RoleFiscalAdministrative:
			cols = []string{"adm_fiscal_id", "sub_fiscal_id"}
		case model.RoleFiscalTechnical:
			cols = []string{"tec_fiscal_id", "sub_fiscal_id"}
		case model.RoleExpenditureAuthorizer:
			cols = []string{"authorizer_id"}
		default:
			return []*model.Contract{}, nil
		}
		conds := make([]string, len(cols))
		for i, col := range cols {
			conds[i] = fmt.Sprintf("c.%s = $%d::uuid", col, n)
		}
		where = append(where, "("+strings.Join(conds, " OR ")+")")
	}

	query := contractSelect()
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.created_at DESC, c.id"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*model.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachUsers(ctx, contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

// attachUsers resolves the linked users of every responsible in one query
func (p *Postgres) attachUsers(ctx context.Context, contracts []*model.Contract) error {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range contracts {
		for _, r := range responsibles(c) {
			if r.UserID != nil && !seen[*r.UserID] {
				seen[*r.UserID] = true
				ids = append(ids, *r.UserID)
			}
		}
	}
	users, err := p.usersByID(ctx, ids)
	if err != nil {
		return err
	}
	for _, c := range contracts {
		for _, r := range responsibles(c) {
			if r.UserID == nil {
				continue
			}
			if u, ok := users[*r.UserID]; ok {
				uc := *u
				r.User = &uc
			}
		}
	}
	return nil
}
