package extension

import "database/sql"

// SchemaStore is the storage capability handed to an extension: a
// connection to the shared Postgres pool plus the extension's own schema
// name, so every query it issues stays scoped to the tables it owns.
// Extensions never receive a handle into the core schema or another
// extension's schema; cross-schema reads go through a typed interface the
// owning extension chooses to expose, not through SchemaStore.
type SchemaStore struct {
	db     *sql.DB
	schema string
}

// NewSchemaStore constructs a SchemaStore scoped to schema. db is the
// shared connection pool (pkg/database.Client.DB()); schema is expected to
// match the extension's declared schema_name.
func NewSchemaStore(db *sql.DB, schema string) *SchemaStore {
	return &SchemaStore{db: db, schema: schema}
}

// Schema returns the extension's owned schema name.
func (s *SchemaStore) Schema() string {
	return s.schema
}

// DB returns the shared connection pool. Callers are responsible for
// qualifying table names with Schema() in their SQL.
func (s *SchemaStore) DB() *sql.DB {
	return s.db
}
