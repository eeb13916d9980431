package customer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/shopsmart/internal/database"
	"github.com/joao-fontenele/shopsmart/internal/domain"
)

type CustomerRepository struct {
	db database.DBTX
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CustomerRepository) WithTx(tx *sql.Tx) *CustomerRepository {
	return &CustomerRepository{db: tx}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	if len(customer.Roles) == 0 {
		customer.Roles = []string{domain.RoleCustomer}
	}
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, email, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, customer.ID, customer.Email, pq.Array(customer.Roles), now)
	if err != nil {
		return err
	}

	if customer.Profile == nil {
		return nil
	}

	profile := customer.Profile
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.CustomerID = customer.ID

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, customer_id, first_name, last_name, phone_number)
		VALUES ($1, $2, $3, $4, $5)
	`, profile.ID, profile.CustomerID, profile.FirstName, profile.LastName, profile.PhoneNumber)
	if err != nil {
		return err
	}

	for i := range profile.Addresses {
		addr := &profile.Addresses[i]
		if addr.ID == "" {
			addr.ID = uuid.New().String()
		}
		addr.ProfileID = profile.ID
		if addr.Type == "" {
			addr.Type = domain.AddressTypeShipping
		}

		_, err = r.db.ExecContext(ctx, `
			INSERT INTO addresses (id, profile_id, street, city, state, postal_code, country, type)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, addr.ID, addr.ProfileID, addr.Street, addr.City, addr.State,
			addr.PostalCode, addr.Country, addr.Type)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	customer := &domain.Customer{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, roles, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Email, pq.Array(&customer.Roles),
		&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("customer %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}

	profile := &domain.Profile{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, first_name, last_name, phone_number
		FROM profiles
		WHERE customer_id = $1
	`, id).Scan(&profile.ID, &profile.CustomerID, &profile.FirstName,
		&profile.LastName, &profile.PhoneNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return customer, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, street, city, state, postal_code, country, type
		FROM addresses
		WHERE profile_id = $1
		ORDER BY id
	`, profile.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var addr domain.Address
		if err := rows.Scan(&addr.ID, &addr.ProfileID, &addr.Street, &addr.City,
			&addr.State, &addr.PostalCode, &addr.Country, &addr.Type); err != nil {
			return nil, err
		}
		profile.Addresses = append(profile.Addresses, addr)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	customer.Profile = profile
	return customer, nil
}

func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("customer %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
