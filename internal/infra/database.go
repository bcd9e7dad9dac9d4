package infra

import (
	"fmt"

	"restopos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// for every aggregate table, then applies the idempotent SQL patches that
// GORM cannot express (partial indexes, check constraints).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Unique violations surface as gorm.ErrDuplicatedKey, which the
		// repositories turn into repository.ErrDuplicate.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// schemaModels lists one model per table. Line modifiers are not among them:
// they are stored as JSON on order_lines.
func schemaModels() []any {
	return []any{
		&model.MenuItem{},
		&model.MenuModifier{},
		&model.Shift{},
		&model.CashMovement{},
		&model.Order{},
		&model.OrderLine{},
		&model.Payment{},
		&model.Refund{},
		&model.OrderCounter{},
		&model.Receipt{},
		&model.AuditEntry{},
	}
}

// RunMigrations creates or updates the schema. Integration tests call it
// directly against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(schemaModels()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement is guarded so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// One open shift per cashier per branch. The service checks first;
		// this catches the race between two simultaneous opens.
		{"unique open shift per cashier", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_one_open_per_cashier
    ON shifts (branch_id, cashier_id)
    WHERE status = 'open'`},
		// The table index and the sweeper scan live orders only.
		{"partial index on live orders", `
CREATE INDEX IF NOT EXISTS idx_orders_live_by_table
    ON orders (branch_id, table_id)
    WHERE status IN ('open', 'held')`},
		{"idempotency lookup on payments", `
CREATE INDEX IF NOT EXISTS idx_payments_idempotency
    ON payments (order_id, idempotency_key)
    WHERE reversed = false`},
		{"line quantity is positive", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_order_lines_quantity') THEN
    ALTER TABLE order_lines ADD CONSTRAINT chk_order_lines_quantity CHECK (quantity >= 1);
  END IF;
END $$`},
		{"refunds never exceed the total", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_orders_refunded') THEN
    ALTER TABLE orders ADD CONSTRAINT chk_orders_refunded CHECK (total_refunded <= total);
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
