package mysql

import (
	"context"
	"errors"
	"fmt"
	"payment-service/internal/domain"
	"payment-service/internal/repository"
	"time"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Create(order)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateSession
		}
		return fmt.Errorf("save order: %w", result.Error)
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return &o, nil
}

func (r *orderRepo) FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, nil
	}
	var o domain.Order
	if err := r.db.WithContext(ctx).Where("gateway_session_id = ?", sessionID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by session %s: %w", sessionID, err)
	}
	return &o, nil
}

func (r *orderRepo) FindByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	var out []domain.Order
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find orders for %s: %w", ownerID, err)
	}
	return out, nil
}

func (r *orderRepo) FindAll(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var out []domain.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (r *orderRepo) ClaimAttempt(ctx context.Context, orderID string, now, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ? AND (push_attempt_at IS NULL OR push_attempt_at < ?)",
			orderID, string(domain.StatusPendingPayment), staleBefore.UTC()).
		Updates(map[string]any{
			"push_attempt_at": now.UTC(),
			"push_attempts":   gorm.Expr("push_attempts + 1"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("claim attempt on %s: %w", orderID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepo) ReleaseAttempt(ctx context.Context, orderID string) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", orderID, string(domain.StatusPendingPayment)).
		Update("push_attempt_at", nil).Error
	if err != nil {
		return fmt.Errorf("release attempt on %s: %w", orderID, err)
	}
	return nil
}

func (r *orderRepo) AttachSession(ctx context.Context, orderID, sessionID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ? AND gateway_session_id IS NULL", orderID, string(domain.StatusPendingPayment)).
		Updates(map[string]any{
			"gateway_session_id": sessionID,
			"status":             string(domain.StatusAwaitingCallback),
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, domain.ErrDuplicateSession
		}
		return false, fmt.Errorf("attach session to %s: %w", orderID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepo) Apply(ctx context.Context, orderID string, t repository.Transition) (bool, error) {
	from := make([]string, 0, len(t.From))
	for _, s := range t.From {
		from = append(from, string(s))
	}
	if len(from) == 0 {
		return false, fmt.Errorf("apply to %s: empty source set", orderID)
	}

	changes := map[string]any{
		"status":  string(t.To),
		"is_paid": t.To.IsPaidState(),
	}
	if t.ReceiptID != nil {
		changes["receipt_id"] = *t.ReceiptID
	}
	if t.FailureReason != nil {
		changes["failure_reason"] = *t.FailureReason
	}
	if t.TransactionTimestamp != nil {
		changes["transaction_timestamp"] = *t.TransactionTimestamp
	}
	if t.VerifiedBy != nil {
		changes["verified_by"] = *t.VerifiedBy
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(changes)
	if result.Error != nil {
		return false, fmt.Errorf("apply %s to %s: %w", t.To, orderID, result.Error)
	}
	return result.RowsAffected == 1, nil
}
