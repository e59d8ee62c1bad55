package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karimfahmy/nilecart-backend/internal/pricing"
	dbpkg "github.com/karimfahmy/nilecart-backend/pkg/db"
	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/outbox"
	"github.com/karimfahmy/nilecart-backend/pkg/pagination"
	"github.com/karimfahmy/nilecart-backend/pkg/security"
	"github.com/karimfahmy/nilecart-backend/pkg/types"
)

const paymentProvider = "paymob"

// ux_payments_provider_txn_ref backs the insert-or-noop race resolution.
const paymentTxnRefConstraint = "ux_payments_provider_txn_ref"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateInput carries everything needed to open a DRAFT order.
type CreateInput struct {
	UserID   *uuid.UUID
	Email    string
	Address  types.ShippingAddress
	Zone     string
	Snapshot *pricing.Snapshot
	Currency enums.Currency
}

// CreateResult returns the new order plus the raw guest access token, which
// exists only in this response.
type CreateResult struct {
	Order       *models.Order
	AccessToken string
}

// FinalizeInput is one gateway settlement attempt for an order.
type FinalizeInput struct {
	OrderID        uuid.UUID
	ProviderTxnRef string
	AmountCents    int64
	Success        bool
	Source         string
	RawPayload     json.RawMessage
}

// FinalizeResult reports what the reconciliation did. AlreadyProcessed means
// this transaction reference was settled before and nothing changed.
type FinalizeResult struct {
	Order            *models.Order
	AlreadyProcessed bool
	Confirmed        bool
}

// Service owns the order state machine. Finalize is the only path from DRAFT
// to CONFIRMED.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	SetProviderOrderRef(ctx context.Context, orderID uuid.UUID, ref string) error
	Finalize(ctx context.Context, input FinalizeInput) (*FinalizeResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetGuestOrder(ctx context.Context, id uuid.UUID, accessToken string) (*models.Order, error)
	RotateAccessToken(ctx context.Context, id uuid.UUID) (string, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID, shipment ShipmentInfo, actor *outbox.ActorRef) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error
	Cancel(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: ob, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if input.Snapshot == nil || len(input.Snapshot.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing snapshot required")
	}
	if input.Zone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping zone required")
	}

	accessToken, digest, err := security.NewAccessToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate access token")
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyEGP
	}

	order := &models.Order{
		UserID:            input.UserID,
		Email:             input.Email,
		Status:            enums.OrderStatusDraft,
		PaymentStatus:     enums.PaymentStatusPending,
		Currency:          currency,
		SubtotalCents:     input.Snapshot.SubtotalCents,
		ShippingCents:     input.Snapshot.ShippingCents,
		DiscountCents:     input.Snapshot.DiscountCents,
		TotalCents:        input.Snapshot.TotalCents,
		ShippingAddress:   input.Address,
		ShippingZone:      input.Zone,
		AccessTokenDigest: digest,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(input.Snapshot.Lines))
		for _, line := range input.Snapshot.Lines {
			items = append(items, models.OrderItem{
				OrderID:        order.ID,
				ProductID:      line.ProductID,
				SKU:            line.SKU,
				Name:           line.Name,
				UnitPriceCents: line.UnitCents,
				Qty:            line.Qty,
				TotalCents:     line.TotalCents,
			})
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(logCtx, "order created")
	}

	return &CreateResult{Order: order, AccessToken: accessToken}, nil
}

func (s *service) SetProviderOrderRef(ctx context.Context, orderID uuid.UUID, ref string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if ref == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider order ref required")
	}
	if err := s.repo.UpdateOrder(ctx, orderID, map[string]any{"provider_order_ref": ref}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set provider order ref")
	}
	return nil
}

// Finalize reconciles one gateway settlement. It is safe to call any number
// of times for the same transaction reference: the first call wins, every
// later call is a no-op reporting AlreadyProcessed.
func (s *service) Finalize(ctx context.Context, input FinalizeInput) (*FinalizeResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ProviderTxnRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider transaction ref required")
	}

	result := &FinalizeResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if existing, err := repo.FindPaymentByTxnRef(ctx, input.ProviderTxnRef); err == nil {
			order, loadErr := repo.FindByID(ctx, existing.OrderID)
			if loadErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "load settled order")
			}
			result.Order = order
			result.AlreadyProcessed = true
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment by txn ref")
		}

		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		captured := input.Success
		var failureReason *string
		if captured && input.AmountCents != order.TotalCents {
			// Reference matched but money does not. Record the attempt
			// without confirming so an operator can reconcile manually.
			captured = false
			reason := fmt.Sprintf("amount mismatch: callback %d, order %d", input.AmountCents, order.TotalCents)
			failureReason = &reason
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"order_id":        order.ID.String(),
					"callback_amount": input.AmountCents,
					"order_total":     order.TotalCents,
				})
				s.logg.Warn(logCtx, "finalize amount mismatch")
			}
		}

		payment := &models.Payment{
			OrderID:        order.ID,
			Provider:       paymentProvider,
			ProviderTxnRef: input.ProviderTxnRef,
			AmountCents:    input.AmountCents,
			Currency:       order.Currency,
			Source:         input.Source,
			RawPayload:     input.RawPayload,
		}
		if captured {
			now := time.Now()
			payment.Status = enums.PaymentStatusCaptured
			payment.CapturedAt = &now
		} else {
			payment.Status = enums.PaymentStatusFailed
			payment.FailureReason = failureReason
		}

		if _, err := repo.CreatePayment(ctx, payment); err != nil {
			if dbpkg.IsUniqueViolation(err, paymentTxnRefConstraint) {
				reloaded, loadErr := repo.FindByID(ctx, order.ID)
				if loadErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "reload order")
				}
				result.Order = reloaded
				result.AlreadyProcessed = true
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		if captured {
			if order.Status == enums.OrderStatusDraft {
				now := time.Now()
				updates := map[string]any{
					"status":         enums.OrderStatusConfirmed,
					"payment_status": enums.PaymentStatusCaptured,
					"confirmed_at":   now,
				}
				if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
				}
				order.Status = enums.OrderStatusConfirmed
				order.PaymentStatus = enums.PaymentStatusCaptured
				order.ConfirmedAt = &now
				result.Confirmed = true

				event := outbox.DomainEvent{
					EventType:     enums.EventOrderConfirmed,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Version:       1,
					Data: OrderConfirmedEvent{
						OrderID:     order.ID,
						OrderNumber: order.OrderNumber,
						Email:       order.Email,
						TotalCents:  order.TotalCents,
						Currency:    string(order.Currency),
						TxnRef:      input.ProviderTxnRef,
					},
				}
				if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order confirmed")
				}
			}
		} else {
			if order.PaymentStatus == enums.PaymentStatusPending {
				if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
					"payment_status": enums.PaymentStatusFailed,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed payment")
				}
				order.PaymentStatus = enums.PaymentStatusFailed
			}

			event := outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: PaymentFailedEvent{
					OrderID: order.ID,
					Email:   order.Email,
					TxnRef:  input.ProviderTxnRef,
				},
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed")
			}
		}

		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// GetGuestOrder loads an order and checks the presented access token against
// the stored digest. Bad tokens get the same answer as missing orders.
func (s *service) GetGuestOrder(ctx context.Context, id uuid.UUID, accessToken string) (*models.Order, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !security.VerifyToken(accessToken, order.AccessTokenDigest) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// RotateAccessToken replaces the guest access token and returns the new raw
// value. Used after payment redirects so the confirmation link can carry a
// token without ever persisting one in clear text.
func (s *service) RotateAccessToken(ctx context.Context, id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	token, digest, err := security.NewAccessToken()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate access token")
	}
	if err := s.repo.UpdateOrder(ctx, id, map[string]any{"access_token_digest": digest}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate access token")
	}
	return token, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListUserOrders(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) MarkShipped(ctx context.Context, orderID uuid.UUID, shipment ShipmentInfo, actor *outbox.ActorRef) error {
	now := time.Now()
	updates := map[string]any{"status": enums.OrderStatusShipped, "shipped_at": now}
	if shipment.Carrier != "" {
		updates["carrier"] = shipment.Carrier
	}
	if shipment.TrackingNumber != "" {
		updates["tracking_number"] = shipment.TrackingNumber
	}
	return s.transition(ctx, orderID, actor, transitionSpec{
		from:      []enums.OrderStatus{enums.OrderStatusConfirmed},
		to:        enums.OrderStatusShipped,
		eventType: enums.EventOrderShipped,
		updates:   updates,
		tracking:  shipment.TrackingNumber,
	})
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error {
	now := time.Now()
	return s.transition(ctx, orderID, actor, transitionSpec{
		from:      []enums.OrderStatus{enums.OrderStatusShipped},
		to:        enums.OrderStatusDelivered,
		eventType: enums.EventOrderDelivered,
		updates:   map[string]any{"status": enums.OrderStatusDelivered, "delivered_at": now},
	})
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error {
	now := time.Now()
	return s.transition(ctx, orderID, actor, transitionSpec{
		from:      []enums.OrderStatus{enums.OrderStatusDraft, enums.OrderStatusConfirmed},
		to:        enums.OrderStatusCancelled,
		eventType: enums.EventOrderCancelled,
		updates:   map[string]any{"status": enums.OrderStatusCancelled, "cancelled_at": now},
	})
}

type transitionSpec struct {
	from      []enums.OrderStatus
	to        enums.OrderStatus
	eventType enums.OutboxEventType
	updates   map[string]any
	tracking  string
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef, spec transitionSpec) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == spec.to {
			return nil
		}
		allowed := false
		for _, from := range spec.from {
			if order.Status == from {
				allowed = true
				break
			}
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, spec.to))
		}

		if err := repo.UpdateOrder(ctx, order.ID, spec.updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		event := outbox.DomainEvent{
			EventType:     spec.eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: FulfillmentEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				Email:          order.Email,
				Status:         spec.to,
				TrackingNumber: spec.tracking,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
}
