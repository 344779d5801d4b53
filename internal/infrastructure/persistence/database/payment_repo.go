package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// paymentRepository 支付仓储
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓储
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepository{db: db}
}

// Create 插入支付记录
// 放在SAVEPOINT里执行：PostgreSQL中语句失败会使整个事务不可用，回滚到保存点后才能查询已有记录
func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	model := toPaymentModel(p)
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		if isDuplicateError(err) {
			existing, findErr := r.FindByOrderID(ctx, p.OrderID)
			if findErr != nil {
				return &payment.DuplicatePaymentError{OrderID: p.OrderID}
			}
			return &payment.DuplicatePaymentError{OrderID: p.OrderID, Status: existing.Status}
		}
		return apperrors.Persistence(err, "创建支付记录失败")
	}
	p.ID = model.ID
	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*payment.Payment, error) {
	return r.first(conn(ctx, r.db).Where("id = ?", id))
}

func (r *paymentRepository) FindByOrderID(ctx context.Context, orderID uint) (*payment.Payment, error) {
	return r.first(conn(ctx, r.db).Where("order_id = ?", orderID))
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	return r.first(conn(ctx, r.db).Where("transaction_id = ?", transactionID))
}

// LockByID SELECT ... FOR UPDATE，必须在事务内调用
func (r *paymentRepository) LockByID(ctx context.Context, id uint) (*payment.Payment, error) {
	return r.first(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// Update 状态、时间戳、网关引用
func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	result := conn(ctx, r.db).Model(&PaymentModel{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"status":         string(p.Status),
		"method":         string(p.Method),
		"amount":         p.Amount,
		"transaction_id": p.TransactionID,
		"external_ref":   p.ExternalRef,
		"checkout_url":   p.CheckoutURL,
		"paid_at":        p.PaidAt,
		"refunded_at":    p.RefundedAt,
		"updated_at":     p.UpdatedAt,
	})
	if result.Error != nil {
		return apperrors.Persistence(result.Error, "更新支付记录失败")
	}
	if result.RowsAffected == 0 {
		return payment.ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepository) first(query *gorm.DB) (*payment.Payment, error) {
	var model PaymentModel
	if err := query.First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, apperrors.Persistence(err, "查询支付记录失败")
	}
	return toPaymentEntity(&model), nil
}

func toPaymentModel(p *payment.Payment) *PaymentModel {
	return &PaymentModel{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		ExternalRef:   p.ExternalRef,
		CheckoutURL:   p.CheckoutURL,
		PaidAt:        p.PaidAt,
		RefundedAt:    p.RefundedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toPaymentEntity(m *PaymentModel) *payment.Payment {
	return &payment.Payment{
		ID:            m.ID,
		OrderID:       m.OrderID,
		UserID:        m.UserID,
		Amount:        m.Amount,
		Method:        payment.Method(m.Method),
		Status:        payment.Status(m.Status),
		TransactionID: m.TransactionID,
		ExternalRef:   m.ExternalRef,
		CheckoutURL:   m.CheckoutURL,
		PaidAt:        m.PaidAt,
		RefundedAt:    m.RefundedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
