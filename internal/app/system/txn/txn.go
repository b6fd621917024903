// Package txn runs multi-collection writes in a Mongo transaction when
// the server supports one, falling back to sequential execution on
// standalone servers (local dev, some managed offerings).
//
// Cascading deletes (group + its messages, assignment + its submissions)
// use this so a crash mid-cascade cannot strand child documents when a
// replica set is available. The fallback keeps the same ordering, so the
// worst case on a standalone server matches what the operations would do
// without transactions at all.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// WithTransaction runs fn inside a session transaction. If the server
// rejects transactions (not a replica set), fn is re-run directly on ctx.
func WithTransaction(ctx context.Context, client *mongo.Client, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if log != nil {
			log.Debug("transactions unsupported, running sequentially", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the server cannot run
// transactions (standalone mongod, or a vendor that rejects sessions).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation variants for txn/session use
			return true
		}
	}

	// Fall back to message sniffing; drivers and vendors word this
	// differently.
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "transaction") && strings.Contains(s, "replica set") {
		return true
	}
	if strings.Contains(s, "session") && strings.Contains(s, "not supported") {
		return true
	}
	if strings.Contains(s, "transaction") && strings.Contains(s, "session") {
		return true
	}
	if strings.Contains(s, "illegal operation") && strings.Contains(s, "transaction") {
		return true
	}
	return false
}
