package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer represents one customer whose clinical analytical database is
// discovered and queried. The connection string is encrypted at rest and
// never serialized.
type Customer struct {
	ID                  uuid.UUID  `json:"id"`
	Code                string     `json:"code"` // Short unique identifier, e.g. "stmarys"
	Name                string     `json:"name"`
	DatabaseType        string     `json:"database_type"` // "postgres" or "mssql"
	EncryptedConnString string     `json:"-"`
	LastDiscoveredAt    *time.Time `json:"last_discovered_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}
