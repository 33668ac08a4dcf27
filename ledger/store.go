// Package ledger persists verified sales. The store is keyed by transaction
// identifier with a database-level uniqueness constraint, so duplicate
// verifications of the same transaction collapse to a single record and the
// running aggregates move exactly once per identifier.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/types"
)

type saleRow struct {
	TransactionID string          `gorm:"primaryKey;size:64"`
	Buyer         string          `gorm:"size:18"`
	Product       string          `gorm:"size:255"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8)"`
	Timestamp     time.Time
	ImageURL      string
}

func (saleRow) TableName() string { return "sales" }

type totalsRow struct {
	ID             uint            `gorm:"primaryKey"`
	TotalSales     decimal.Decimal `gorm:"type:decimal(20,8)"`
	ReceiptsIssued int64
}

func (totalsRow) TableName() string { return "sale_totals" }

// Totals are the running aggregates across all recorded sales.
type Totals struct {
	TotalSales     decimal.Decimal `json:"totalSales"`
	ReceiptsIssued int64           `json:"receiptsIssued"`
}

// Store is the sale ledger writer.
type Store struct {
	db  *gorm.DB
	log logger.Logger

	// Serializes check-and-insert so the aggregate bump cannot race the
	// uniqueness check under concurrent duplicate verifications.
	mu sync.Mutex
}

// Open opens (or creates) the sqlite ledger at path and migrates its schema.
func Open(path string, log logger.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	return NewStore(db, log)
}

// NewStore wraps an existing gorm handle; used directly by tests with an
// in-memory database.
func NewStore(db *gorm.DB, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if err := db.AutoMigrate(&saleRow{}, &totalsRow{}); err != nil {
		return nil, fmt.Errorf("migrating ledger schema: %w", err)
	}

	seed := totalsRow{ID: 1, TotalSales: decimal.Zero}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("seeding totals row: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// InsertIfAbsent appends the record unless one already exists for its
// transaction identifier. Returns true when the record was inserted; false
// means an identical identifier was already recorded and nothing changed.
func (s *Store) InsertIfAbsent(ctx context.Context, rec types.SaleRecord) (bool, error) {
	if !types.IsValidTransactionID(rec.TransactionID) {
		return false, types.NewError(types.ErrInvalidTransactionID, "sale record has a malformed transaction id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := saleRow{
			TransactionID: rec.TransactionID,
			Buyer:         rec.Buyer,
			Product:       rec.Product,
			Amount:        rec.Amount,
			Timestamp:     rec.Timestamp,
			ImageURL:      rec.ImageURL,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true

		return tx.Model(&totalsRow{}).Where("id = ?", 1).Updates(map[string]any{
			"total_sales":     gorm.Expr("total_sales + ?", rec.Amount),
			"receipts_issued": gorm.Expr("receipts_issued + 1"),
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("inserting sale record: %w", err)
	}

	if inserted {
		s.log.Info("sale recorded", map[string]any{
			"txId":    types.ShortID(rec.TransactionID),
			"product": rec.Product,
		})
	}
	return inserted, nil
}

// Lookup returns the sale record for the identifier, or nil when absent.
func (s *Store) Lookup(ctx context.Context, transactionID string) (*types.SaleRecord, error) {
	var row saleRow
	err := s.db.WithContext(ctx).First(&row, "transaction_id = ?", transactionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up sale record: %w", err)
	}

	rec := row.toRecord()
	return &rec, nil
}

// AttachImage sets the generated-asset reference on an existing record. The
// only mutation a sale record ever receives.
func (s *Store) AttachImage(ctx context.Context, transactionID, imageURL string) error {
	res := s.db.WithContext(ctx).
		Model(&saleRow{}).
		Where("transaction_id = ?", transactionID).
		Update("image_url", imageURL)
	if res.Error != nil {
		return fmt.Errorf("attaching image reference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ErrTransactionNotFound, "no sale record for transaction")
	}
	return nil
}

// Totals returns the running aggregates.
func (s *Store) Totals(ctx context.Context) (*Totals, error) {
	var row totalsRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", 1).Error; err != nil {
		return nil, fmt.Errorf("reading totals: %w", err)
	}
	return &Totals{TotalSales: row.TotalSales, ReceiptsIssued: row.ReceiptsIssued}, nil
}

// ChainReader is the live read path used when a record is missing locally.
type ChainReader interface {
	GetTransaction(ctx context.Context, id string) (*types.TransactionResult, error)
}

// LiveSummary is a best-effort display record synthesized from live chain
// state when no local sale record exists, e.g. when the sale was recorded by
// a different process instance.
type LiveSummary struct {
	TransactionID    string                  `json:"transactionId"`
	Buyer            string                  `json:"buyer"`
	Status           types.TransactionStatus `json:"status"`
	ReferenceBlockID string                  `json:"blockId,omitempty"`
}

// FindOrFetchLive looks the identifier up locally first, then falls back to
// a direct chain query. Exactly one of the two results is non-nil on
// success; a TX_NOT_FOUND error means neither location knew the identifier.
func (s *Store) FindOrFetchLive(ctx context.Context, transactionID string, chain ChainReader) (*types.SaleRecord, *LiveSummary, error) {
	rec, err := s.Lookup(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	if rec != nil {
		return rec, nil, nil
	}

	result, err := chain.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}

	buyer := result.Proposer
	if buyer == "" {
		buyer = "Unknown"
	}
	return nil, &LiveSummary{
		TransactionID:    transactionID,
		Buyer:            buyer,
		Status:           result.Status,
		ReferenceBlockID: result.ReferenceBlockID,
	}, nil
}

func (r saleRow) toRecord() types.SaleRecord {
	return types.SaleRecord{
		Buyer:         r.Buyer,
		Product:       r.Product,
		Amount:        r.Amount,
		TransactionID: r.TransactionID,
		Timestamp:     r.Timestamp,
		ImageURL:      r.ImageURL,
	}
}
