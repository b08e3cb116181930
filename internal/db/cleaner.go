package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartSoftDeleteCleaner purges, every interval, products that were
// soft-deleted more than retention ago. It stops when ctx is done.
func StartSoftDeleteCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purgeDeleted(ctx, db, time.Now().Add(-retention), log)
			}
		}
	}()
}

func purgeDeleted(ctx context.Context, db *sql.DB, cutoff time.Time, log *zap.Logger) {
	res, err := db.ExecContext(ctx, `
        DELETE FROM products
         WHERE deleted = true
           AND deleted_at < $1
    `, cutoff)
	if err != nil {
		log.Error("failed to purge soft-deleted products", zap.Error(err))
		return
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		log.Info("purged soft-deleted products", zap.Int64("removed", rows))
	}
}
