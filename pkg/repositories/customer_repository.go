package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lucerna-health/lucerna-engine/pkg/apperrors"
	"github.com/lucerna-health/lucerna-engine/pkg/crypto"
	"github.com/lucerna-health/lucerna-engine/pkg/database"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// CustomerRepository is the customer directory: it resolves customer records
// and decrypted connection strings for their analytical databases.
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer, connString string) error
	GetByCode(ctx context.Context, code string) (*models.Customer, error)
	// GetConnectionString returns the decrypted analytical database
	// connection string for a customer.
	GetConnectionString(ctx context.Context, code string) (string, error)
	// TouchDiscovered updates the customer's last-discovered timestamp.
	TouchDiscovered(ctx context.Context, customerID uuid.UUID, at time.Time) error
}

type customerRepository struct {
	db        *database.DB
	encryptor *crypto.ConnectionStringEncryptor
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(db *database.DB, encryptor *crypto.ConnectionStringEncryptor) CustomerRepository {
	return &customerRepository{db: db, encryptor: encryptor}
}

var _ CustomerRepository = (*customerRepository)(nil)

func (r *customerRepository) Create(ctx context.Context, customer *models.Customer, connString string) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	customer.CreatedAt = time.Now()

	encrypted, err := r.encryptor.Encrypt(connString)
	if err != nil {
		return fmt.Errorf("encrypt connection string: %w", err)
	}
	customer.EncryptedConnString = encrypted

	query := `
		INSERT INTO engine_customers (id, code, name, database_type, encrypted_conn_string, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		customer.ID, customer.Code, customer.Name, customer.DatabaseType,
		customer.EncryptedConnString, customer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *customerRepository) GetByCode(ctx context.Context, code string) (*models.Customer, error) {
	query := `
		SELECT id, code, name, database_type, encrypted_conn_string, last_discovered_at, created_at
		FROM engine_customers
		WHERE code = $1`

	var c models.Customer
	err := r.db.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Name, &c.DatabaseType,
		&c.EncryptedConnString, &c.LastDiscoveredAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}

	return &c, nil
}

func (r *customerRepository) GetConnectionString(ctx context.Context, code string) (string, error) {
	customer, err := r.GetByCode(ctx, code)
	if err != nil {
		return "", err
	}

	if customer.EncryptedConnString == "" {
		return "", apperrors.ErrNoConnectionString
	}

	connString, err := r.encryptor.Decrypt(customer.EncryptedConnString)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return "", apperrors.ErrCredentialsKeyMismatch
		}
		return "", fmt.Errorf("decrypt connection string: %w", err)
	}

	return connString, nil
}

func (r *customerRepository) TouchDiscovered(ctx context.Context, customerID uuid.UUID, at time.Time) error {
	query := `UPDATE engine_customers SET last_discovered_at = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, customerID, at)
	if err != nil {
		return fmt.Errorf("failed to update last-discovered timestamp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCustomerNotFound
	}

	return nil
}
