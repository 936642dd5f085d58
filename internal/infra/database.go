package infra

import (
	"fmt"

	"washly/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and brings the schema
// up to date (see RunMigrations).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // unique violations surface as gorm.ErrDuplicatedKey
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

// RunMigrations creates / updates every table from the models, then applies the
// idempotent SQL patches GORM cannot express.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Client{},
		&model.CatalogService{},
		&model.Ticket{},
		&model.TicketItem{},
		&model.TicketStatusChange{},
		&model.CashSession{},
		&model.CashMovement{},
		&model.Payment{},
		&model.PostCloseAdjustment{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL: partial unique indexes and the ticket
// number sequence. Each statement uses IF NOT EXISTS so re-running is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		`CREATE SEQUENCE IF NOT EXISTS tickets_number_seq START 1`,
		// at most one OPEN cash session per user
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_sessions_one_open_per_user
		    ON cash_sessions (user_id) WHERE status = 'OPEN'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_idempotency
		    ON payments (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_idempotency
		    ON tickets (created_by, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		// sweep query of the report worker
		`CREATE INDEX IF NOT EXISTS idx_cash_sessions_unreported
		    ON cash_sessions (closed_at) WHERE status = 'CLOSED' AND report_sent_at IS NULL`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_payments_amount_positive') THEN
		    ALTER TABLE payments ADD CONSTRAINT chk_payments_amount_positive CHECK (amount > 0);
		  END IF;
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_movements_amount_positive') THEN
		    ALTER TABLE cash_movements ADD CONSTRAINT chk_cash_movements_amount_positive CHECK (amount > 0);
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
