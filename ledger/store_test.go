package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flowmint/flowpay/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	store, err := NewStore(db, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func saleFixture(txID string) types.SaleRecord {
	return types.SaleRecord{
		Buyer:         "0x1234567890abcdef",
		Product:       "Neon Hoodie",
		Amount:        decimal.RequireFromString("0.5"),
		TransactionID: txID,
		Timestamp:     time.Now().UTC(),
	}
}

const txA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const txB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func TestInsertIfAbsentIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	inserted, err := store.InsertIfAbsent(ctx, saleFixture(txA))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported as duplicate")
	}

	inserted, err = store.InsertIfAbsent(ctx, saleFixture(txA))
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatal("second insert of the same identifier reported as new")
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.ReceiptsIssued != 1 {
		t.Fatalf("receipts %d, want exactly 1", totals.ReceiptsIssued)
	}
	if !totals.TotalSales.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("total sales %s, want 0.5", totals.TotalSales)
	}
}

func TestInsertIfAbsentUnderConcurrentRetries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	insertions := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := store.InsertIfAbsent(ctx, saleFixture(txA))
			if err != nil {
				t.Errorf("concurrent insert: %v", err)
				return
			}
			insertions <- inserted
		}()
	}
	wg.Wait()
	close(insertions)

	var wins int
	for inserted := range insertions {
		if inserted {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("%d inserts succeeded, want exactly 1", wins)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.ReceiptsIssued != 1 {
		t.Fatalf("aggregates moved %d times, want once", totals.ReceiptsIssued)
	}
}

func TestInsertIfAbsentRejectsMalformedID(t *testing.T) {
	store := setupStore(t)
	if _, err := store.InsertIfAbsent(context.Background(), saleFixture("nope")); !types.IsCode(err, types.ErrInvalidTransactionID) {
		t.Fatalf("got %v, want INVALID_TRANSACTION_ID", err)
	}
}

func TestLookupAndAttachImage(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if rec, err := store.Lookup(ctx, txA); err != nil || rec != nil {
		t.Fatalf("lookup on empty store: rec=%v err=%v", rec, err)
	}

	if _, err := store.InsertIfAbsent(ctx, saleFixture(txA)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, err := store.Lookup(ctx, txA)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec == nil || rec.Product != "Neon Hoodie" || rec.ImageURL != "" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := store.AttachImage(ctx, txA, "data:image/png;base64,xyz"); err != nil {
		t.Fatalf("attach image: %v", err)
	}
	rec, err = store.Lookup(ctx, txA)
	if err != nil {
		t.Fatalf("lookup after attach: %v", err)
	}
	if rec.ImageURL == "" {
		t.Fatal("image reference not attached")
	}

	if err := store.AttachImage(ctx, txB, "url"); !types.IsCode(err, types.ErrTransactionNotFound) {
		t.Fatalf("got %v, want TX_NOT_FOUND for missing record", err)
	}
}

type chainReaderFunc func(ctx context.Context, id string) (*types.TransactionResult, error)

func (f chainReaderFunc) GetTransaction(ctx context.Context, id string) (*types.TransactionResult, error) {
	return f(ctx, id)
}

func TestFindOrFetchLivePrefersLocalRecord(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	if _, err := store.InsertIfAbsent(ctx, saleFixture(txA)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, live, err := store.FindOrFetchLive(ctx, txA, chainReaderFunc(func(context.Context, string) (*types.TransactionResult, error) {
		t.Fatal("chain queried although a local record exists")
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("find or fetch: %v", err)
	}
	if rec == nil || live != nil {
		t.Fatalf("want local record only, got rec=%v live=%v", rec, live)
	}
}

func TestFindOrFetchLiveFallsBackToChain(t *testing.T) {
	store := setupStore(t)

	rec, live, err := store.FindOrFetchLive(context.Background(), txB, chainReaderFunc(func(_ context.Context, id string) (*types.TransactionResult, error) {
		return &types.TransactionResult{
			Status:           types.StatusSealed,
			Proposer:         "0x1234567890abcdef",
			ReferenceBlockID: "deadbeef",
		}, nil
	}))
	if err != nil {
		t.Fatalf("find or fetch: %v", err)
	}
	if rec != nil || live == nil {
		t.Fatalf("want live summary only, got rec=%v live=%v", rec, live)
	}
	if live.Buyer != "0x1234567890abcdef" || live.Status != types.StatusSealed {
		t.Fatalf("unexpected summary: %+v", live)
	}
}

func TestFindOrFetchLiveNotFoundAnywhere(t *testing.T) {
	store := setupStore(t)

	_, _, err := store.FindOrFetchLive(context.Background(), txB, chainReaderFunc(func(context.Context, string) (*types.TransactionResult, error) {
		return nil, types.NewError(types.ErrTransactionNotFound, "not found")
	}))
	if !types.IsCode(err, types.ErrTransactionNotFound) {
		t.Fatalf("got %v, want TX_NOT_FOUND", err)
	}
}
