package repositories

import (
	"context"

	"otomart/internal/models"

	"github.com/google/uuid"
)

type PaymentMethodRepository interface {
	Create(ctx context.Context, method *models.PaymentMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
	Update(ctx context.Context, method *models.PaymentMethod) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool) ([]*models.PaymentMethod, error)
}

type paymentMethodRepo struct {
	db DB
}

func NewPaymentMethodRepo(db DB) PaymentMethodRepository {
	return &paymentMethodRepo{db: db}
}

const paymentMethodColumns = `id, provider, account_name, account_number, instructions, is_active, created_at, updated_at`

func (r *paymentMethodRepo) Create(ctx context.Context, method *models.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (id, provider, account_name, account_number, instructions, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, method.ID, method.Provider, method.AccountName, method.AccountNumber, method.Instructions, method.IsActive)
	return err
}

func (r *paymentMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	method := &models.PaymentMethod{}
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&method.ID, &method.Provider, &method.AccountName, &method.AccountNumber, &method.Instructions, &method.IsActive, &method.CreatedAt, &method.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return method, nil
}

func (r *paymentMethodRepo) Update(ctx context.Context, method *models.PaymentMethod) error {
	query := `
		UPDATE payment_methods
		SET provider = $1, account_name = $2, account_number = $3, instructions = $4, is_active = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, method.Provider, method.AccountName, method.AccountNumber, method.Instructions, method.IsActive, method.ID)
	return err
}

func (r *paymentMethodRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM payment_methods WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *paymentMethodRepo) List(ctx context.Context, activeOnly bool) ([]*models.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE ($1 = false OR is_active = true)
		ORDER BY provider ASC
	`
	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []*models.PaymentMethod
	for rows.Next() {
		method := &models.PaymentMethod{}
		if err := rows.Scan(&method.ID, &method.Provider, &method.AccountName, &method.AccountNumber, &method.Instructions, &method.IsActive, &method.CreatedAt, &method.UpdatedAt); err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	return methods, rows.Err()
}
