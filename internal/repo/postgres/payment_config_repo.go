package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
)

var ErrPaymentConfigNotFound = errors.New("payment config not found")

const paymentConfigColumns = `id, config_type, provider_name, account_number,
	account_name, instructions, is_active, display_order`

type PaymentConfigRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentConfigRepo(pool *pgxpool.Pool) *PaymentConfigRepo {
	return &PaymentConfigRepo{pool: pool}
}

type CreatePaymentConfigInput struct {
	ConfigType    enums.PaymentConfigType
	ProviderName  string
	AccountNumber string
	AccountName   string
	Instructions  string
	DisplayOrder  int
}

func (r *PaymentConfigRepo) Create(ctx context.Context, in CreatePaymentConfigInput) (model.PaymentConfig, error) {
	if r.pool == nil {
		return model.PaymentConfig{}, fmt.Errorf("postgres pool is nil")
	}
	if !in.ConfigType.Valid() || in.ProviderName == "" || in.AccountNumber == "" {
		return model.PaymentConfig{}, fmt.Errorf("invalid payment config create payload")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO payment_configs (
	config_type,
	provider_name,
	account_number,
	account_name,
	instructions,
	is_active,
	display_order
) VALUES ($1, $2, $3, $4, $5, TRUE, $6)
RETURNING `+paymentConfigColumns, string(in.ConfigType), in.ProviderName, in.AccountNumber,
		in.AccountName, in.Instructions, in.DisplayOrder)

	cfg, err := scanPaymentConfig(row)
	if err != nil {
		return model.PaymentConfig{}, fmt.Errorf("create payment config: %w", err)
	}
	return cfg, nil
}

// ListActive returns the receiving accounts shown to buyers, in display order.
func (r *PaymentConfigRepo) ListActive(ctx context.Context) ([]model.PaymentConfig, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+paymentConfigColumns+`
FROM payment_configs
WHERE is_active = TRUE
ORDER BY display_order ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list active payment configs: %w", err)
	}
	defer rows.Close()

	return collectPaymentConfigs(rows)
}

func (r *PaymentConfigRepo) List(ctx context.Context) ([]model.PaymentConfig, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+paymentConfigColumns+`
FROM payment_configs
ORDER BY display_order ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list payment configs: %w", err)
	}
	defer rows.Close()

	return collectPaymentConfigs(rows)
}

func (r *PaymentConfigRepo) SetActive(ctx context.Context, configID int64, active bool) (model.PaymentConfig, error) {
	if r.pool == nil {
		return model.PaymentConfig{}, fmt.Errorf("postgres pool is nil")
	}
	if configID <= 0 {
		return model.PaymentConfig{}, fmt.Errorf("invalid payment config id")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE payment_configs
SET is_active = $2
WHERE id = $1
RETURNING `+paymentConfigColumns, configID, active)

	cfg, err := scanPaymentConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PaymentConfig{}, ErrPaymentConfigNotFound
		}
		return model.PaymentConfig{}, fmt.Errorf("set payment config active: %w", err)
	}
	return cfg, nil
}

func collectPaymentConfigs(rows pgx.Rows) ([]model.PaymentConfig, error) {
	configs := make([]model.PaymentConfig, 0)
	for rows.Next() {
		cfg, err := scanPaymentConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment config row: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment config rows: %w", err)
	}
	return configs, nil
}

func scanPaymentConfig(row pgx.Row) (model.PaymentConfig, error) {
	var (
		cfg        model.PaymentConfig
		configType string
	)
	if err := row.Scan(
		&cfg.ID,
		&configType,
		&cfg.ProviderName,
		&cfg.AccountNumber,
		&cfg.AccountName,
		&cfg.Instructions,
		&cfg.IsActive,
		&cfg.DisplayOrder,
	); err != nil {
		return model.PaymentConfig{}, err
	}
	cfg.ConfigType = enums.PaymentConfigType(configType)
	return cfg, nil
}
