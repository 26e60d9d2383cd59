package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_DeclaresLedgerTables(t *testing.T) {
	for _, table := range []string{
		"products",
		"admin_inventory",
		"stock_requests",
		"stock_request_items",
		"inventory_transactions",
		"stock_returns",
		"sales",
		"sale_items",
		"users",
		"sys_audit",
		"sys_idempotency",
	} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.Contains(t, schemaSQL, "PRIMARY KEY (holder_id, product_id)")
	assert.Contains(t, schemaSQL, "PRIMARY KEY (actor_id, operation, idempotency_key)")
}
