package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
)

type AdminContactRepo struct {
	pool *pgxpool.Pool
}

func NewAdminContactRepo(pool *pgxpool.Pool) *AdminContactRepo {
	return &AdminContactRepo{pool: pool}
}

// ListActive returns the admin contact directory, primaries first.
func (r *AdminContactRepo) ListActive(ctx context.Context) ([]model.AdminContactInfo, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, admin_id, contact_type, contact_value, display_name, is_active, is_primary
FROM admin_contacts
WHERE is_active = TRUE
ORDER BY is_primary DESC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list active admin contacts: %w", err)
	}
	defer rows.Close()

	return collectAdminContacts(rows)
}

func (r *AdminContactRepo) Upsert(ctx context.Context, contact model.AdminContactInfo) (model.AdminContactInfo, error) {
	if r.pool == nil {
		return model.AdminContactInfo{}, fmt.Errorf("postgres pool is nil")
	}
	if contact.AdminID <= 0 || !contact.ContactType.Valid() || contact.ContactValue == "" {
		return model.AdminContactInfo{}, fmt.Errorf("invalid admin contact payload")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO admin_contacts (admin_id, contact_type, contact_value, display_name, is_active, is_primary)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (admin_id, contact_type) DO UPDATE
SET contact_value = EXCLUDED.contact_value,
	display_name = EXCLUDED.display_name,
	is_active = EXCLUDED.is_active,
	is_primary = EXCLUDED.is_primary
RETURNING id, admin_id, contact_type, contact_value, display_name, is_active, is_primary
`, contact.AdminID, string(contact.ContactType), contact.ContactValue, contact.DisplayName,
		contact.IsActive, contact.IsPrimary)

	return scanAdminContact(row)
}

func collectAdminContacts(rows pgx.Rows) ([]model.AdminContactInfo, error) {
	contacts := make([]model.AdminContactInfo, 0)
	for rows.Next() {
		contact, err := scanAdminContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin contact row: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin contact rows: %w", err)
	}
	return contacts, nil
}

func scanAdminContact(row pgx.Row) (model.AdminContactInfo, error) {
	var (
		contact     model.AdminContactInfo
		contactType string
	)
	if err := row.Scan(
		&contact.ID,
		&contact.AdminID,
		&contactType,
		&contact.ContactValue,
		&contact.DisplayName,
		&contact.IsActive,
		&contact.IsPrimary,
	); err != nil {
		return model.AdminContactInfo{}, err
	}
	contact.ContactType = enums.ContactType(contactType)
	return contact, nil
}
