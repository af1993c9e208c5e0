package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/paywallio/paywalld/internal/models"
	"github.com/paywallio/paywalld/pkg/logger"
)

var purchaseKeyColumns = []clause.Column{
	{Name: "paywall_id"},
	{Name: "buyer_wallet_address"},
	{Name: "transaction_hash"},
}

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

var _ models.Repository = (*PostgresDB)(nil)

func NewPostgresDB(dsn string, logger *logger.Logger) (*PostgresDB, error) {
	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		logger,
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.AutoMigrate(&models.Paywall{}, &models.Purchase{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (db *PostgresDB) CreatePaywall(ctx context.Context, paywall *models.Paywall) error {
	var count int64
	if err := db.Conn.WithContext(ctx).Model(&models.Paywall{}).Where("id = ?", paywall.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check paywall id: %w", err)
	}
	if count > 0 {
		return models.NewError(models.CodeDuplicatePaywallID, "paywall id %q already exists", paywall.ID)
	}

	// The primary key is the real guard against a concurrent create with the same id.
	if err := db.Conn.WithContext(ctx).Create(paywall).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewError(models.CodeDuplicatePaywallID, "paywall id %q already exists", paywall.ID)
		}
		return fmt.Errorf("failed to create paywall: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetPaywall(ctx context.Context, id string) (*models.Paywall, error) {
	var paywall models.Paywall
	if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&paywall).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewError(models.CodeNotFound, "paywall %q not found", id)
		}
		return nil, fmt.Errorf("failed to get paywall: %w", err)
	}
	return &paywall, nil
}

func (db *PostgresDB) ListPaywalls(ctx context.Context, limit int) ([]*models.Paywall, error) {
	var paywalls []*models.Paywall
	if err := db.Conn.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&paywalls).Error; err != nil {
		return nil, fmt.Errorf("failed to list paywalls: %w", err)
	}
	return paywalls, nil
}

func (db *PostgresDB) FindPurchase(ctx context.Context, key models.PurchaseKey) (*models.Purchase, error) {
	var purchase models.Purchase
	err := db.Conn.WithContext(ctx).
		Where("paywall_id = ? AND buyer_wallet_address = ? AND transaction_hash = ?", key.PaywallID, key.BuyerAddress, key.TxRef).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return &purchase, nil
}

// InsertPurchaseIfAbsent runs a single INSERT ... ON CONFLICT DO NOTHING on the
// natural key, so concurrent callers cannot both insert.
func (db *PostgresDB) InsertPurchaseIfAbsent(ctx context.Context, purchase *models.Purchase) (bool, *models.Purchase, error) {
	res := db.Conn.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: purchaseKeyColumns, DoNothing: true}).
		Create(purchase)
	if res.Error != nil {
		return false, nil, fmt.Errorf("failed to insert purchase: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, purchase, nil
	}

	existing, err := db.FindPurchase(ctx, purchase.Key())
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		return false, nil, fmt.Errorf("failed to insert purchase: conflicting row for %s not found", purchase.PaywallID)
	}
	db.logger.Debug("Purchase already recorded", "paywall", purchase.PaywallID, "tx", purchase.TransactionHash)
	return false, existing, nil
}

func (db *PostgresDB) ListPurchasesByBuyer(ctx context.Context, buyerAddress string) ([]*models.Purchase, error) {
	var purchases []*models.Purchase
	if err := db.Conn.WithContext(ctx).
		Preload("Paywall").
		Where("buyer_wallet_address = ?", buyerAddress).
		Order("purchased_at desc").
		Find(&purchases).Error; err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}
