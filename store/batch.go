package store

import (
	"context"
	stderrors "errors"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kpiload/models"
)

// ConflictPolicy decides what happens to rows whose unique key is already stored.
type ConflictPolicy string

const (
	// IgnoreRow skips only the colliding rows (ON CONFLICT DO NOTHING).
	IgnoreRow ConflictPolicy = "ignore-row"
	// SkipChunk inserts each chunk in a transaction and drops the whole chunk on any collision.
	// A collision inside the chunk counts too: repeated line rows of one order in the same
	// chunk drop that order even on a first ingest, so line-level input wants IgnoreRow.
	SkipChunk ConflictPolicy = "skip-chunk"
)

var ErrIntegrityViolation = errors.New("integrity violation")

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case IgnoreRow, SkipChunk:
		return p, nil
	case "":
		return IgnoreRow, nil
	default:
		return "", errors.Errorf("unknown conflict policy %q", s)
	}
}

type BatchResult struct {
	Inserted int64 `json:"inserted"`
	Skipped  int64 `json:"skipped"`
}

func (r BatchResult) Add(o BatchResult) BatchResult {
	return BatchResult{Inserted: r.Inserted + o.Inserted, Skipped: r.Skipped + o.Skipped}
}

// InsertBatches writes rows in chunks of chunkSize. Inserted and Skipped always add up to len(rows).
func InsertBatches[T any](ctx context.Context, s *Store, rows []T, chunkSize int, policy ConflictPolicy) (BatchResult, error) {
	if chunkSize <= 0 {
		chunkSize = s.batchSize
	}
	var res BatchResult
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		var (
			r   BatchResult
			err error
		)
		switch policy {
		case SkipChunk:
			r, err = insertChunkOrSkip(ctx, s, chunk, start)
		default:
			r, err = insertIgnoringConflicts(ctx, s.db, chunk)
		}
		if err != nil {
			return res, errors.Wrapf(err, "insert rows %d-%d", start, end-1)
		}
		res = res.Add(r)
	}
	return res, nil
}

func insertIgnoringConflicts[T any](ctx context.Context, db *gorm.DB, chunk []T) (BatchResult, error) {
	tx := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&chunk)
	if tx.Error != nil {
		return BatchResult{}, tx.Error
	}
	return BatchResult{Inserted: tx.RowsAffected, Skipped: int64(len(chunk)) - tx.RowsAffected}, nil
}

func insertChunkOrSkip[T any](ctx context.Context, s *Store, chunk []T, offset int) (BatchResult, error) {
	n := int64(len(chunk))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&chunk).Error
	})
	if err == nil {
		return BatchResult{Inserted: n}, nil
	}
	if isDuplicate(err) {
		s.Logger.WithError(errors.Wrap(ErrIntegrityViolation, err.Error())).
			Warnf("skipped chunk of %d rows starting at row %d", n, offset)
		return BatchResult{Skipped: n}, nil
	}
	return BatchResult{}, err
}

// isDuplicate also unwraps sqlite errors, which the sqlite dialector only translates for unique indexes.
func isDuplicate(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var se sqlite3.Error
	if stderrors.As(err, &se) {
		return uniqueViolation(se)
	}
	var sep *sqlite3.Error
	if stderrors.As(err, &sep) {
		return uniqueViolation(*sep)
	}
	return false
}

func uniqueViolation(e sqlite3.Error) bool {
	return e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || e.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *Store) InsertCustomers(ctx context.Context, customers []models.Customer) (BatchResult, error) {
	return InsertBatches(ctx, s, customers, s.batchSize, s.policy)
}

func (s *Store) InsertOrders(ctx context.Context, orders []models.Order) (BatchResult, error) {
	return InsertBatches(ctx, s, orders, s.batchSize, s.policy)
}
