package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/pagination"
)

// Repository defines persistence operations for refunds plus the payment and
// order rows a settlement touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	FindByProviderRef(ctx context.Context, providerRefundRef string) (*models.Refund, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
	SumReservedByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
	SumSettledByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
	UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindCapturedPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindOrderByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListRefunds(ctx context.Context, params pagination.Params, filters ListFilters) (*RefundList, error)
}
