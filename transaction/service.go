package transaction

import (
	"context"
	"time"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/monobank"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

// Key is the registry entry holding the transaction service.
var Key = registry.NewKey[*Service]("transaction")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Categorizer maps a merchant category code to a category name.
type Categorizer interface {
	Category(ctx context.Context, code int) (string, error)
}

type Service struct {
	store      Store
	categories Categorizer
	logger     *zap.Logger
}

func NewService(store Store, categories Categorizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, categories: categories, logger: logger}
}

// Record categorizes a statement item and stores it. Recording the same item
// twice returns created=false.
func (s *Service) Record(ctx context.Context, userID int64, account string, item monobank.StatementItem) (t *Transaction, created bool, err error) {
	if item.ID == "" {
		return nil, false, apperrors.NewValidation("statement item id is required")
	}
	category, err := s.categories.Category(ctx, item.MCC)
	if err != nil {
		return nil, false, err
	}

	t = &Transaction{
		ID:           item.ID,
		UserID:       userID,
		Account:      account,
		Amount:       item.Amount,
		Balance:      item.Balance,
		CurrencyCode: item.CurrencyCode,
		MCC:          item.MCC,
		Category:     category,
		Description:  item.Description,
		Time:         time.Unix(item.Time, 0).UTC(),
	}
	created, err = s.store.Insert(ctx, t)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("transaction.recorded",
			zap.Int64("user_id", userID), zap.String("id", t.ID), zap.String("category", category))
	}
	return t, created, nil
}

// List returns the latest transactions of a user, newest first.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.List(ctx, userID, limit)
}
