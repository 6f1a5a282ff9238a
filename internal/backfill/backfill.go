// Package backfill encrypts account names written before encryption was
// enabled.
package backfill

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

// Store pages through plaintext account names and swaps them for ciphertext.
type Store interface {
	ListLegacyAccountNames(ctx context.Context, afterID uuid.UUID, limit int) ([]db.LegacyAccount, error)
	ReplaceAccountName(ctx context.Context, subscriptionID uuid.UUID, previous, next string) (bool, error)
}

// Encrypter is satisfied by *cryptox.Cipher
type Encrypter interface {
	Encrypt(plaintext, userID string) (string, error)
}

// Result counts what a backfill did. Conflicts are rows changed by someone
// else between read and write; they are left alone.
type Result struct {
	Scanned   int `json:"scanned"`
	Encrypted int `json:"encrypted"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
}

const defaultBatchSize = 500

// Run encrypts every legacy account name. Per-row failures are counted and
// logged; only listing errors and cancellation stop the backfill.
func Run(ctx context.Context, store Store, enc Encrypter, batchSize int, logger *zap.Logger) (Result, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var (
		res    Result
		cursor uuid.UUID
	)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch, err := store.ListLegacyAccountNames(ctx, cursor, batchSize)
		if err != nil {
			return res, fmt.Errorf("list legacy account names: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, acct := range batch {
			res.Scanned++
			cursor = acct.SubscriptionID

			ok, err := encryptOne(ctx, store, enc, acct)
			switch {
			case err != nil:
				res.Failed++
				logger.Warn("failed to encrypt account name",
					zap.String("subscription_id", acct.SubscriptionID.String()),
					zap.Error(err),
				)
			case !ok:
				res.Conflicts++
			default:
				res.Encrypted++
			}
		}

		logger.Info("backfill batch done",
			zap.Int("scanned", res.Scanned),
			zap.Int("encrypted", res.Encrypted),
		)

		if len(batch) < batchSize {
			break
		}
	}

	return res, nil
}

func encryptOne(ctx context.Context, store Store, enc Encrypter, acct db.LegacyAccount) (bool, error) {
	sealed, err := enc.Encrypt(acct.AccountName, acct.UserID.String())
	if err != nil {
		return false, fmt.Errorf("encrypt: %w", err)
	}

	ok, err := store.ReplaceAccountName(ctx, acct.SubscriptionID, acct.AccountName, sealed)
	if err != nil {
		return false, fmt.Errorf("update: %w", err)
	}
	return ok, nil
}
