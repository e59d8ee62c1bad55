package refunds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/outbox"
	"github.com/karimfahmy/nilecart-backend/pkg/pagination"
	"github.com/karimfahmy/nilecart-backend/pkg/paymob"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// refundGateway is the slice of the payment provider the refund flow needs.
type refundGateway interface {
	Authenticate(ctx context.Context) (string, error)
	Refund(ctx context.Context, authToken string, params paymob.RefundParams) (*paymob.RefundResult, error)
}

// RequestInput opens a refund request against an order's captured payment.
type RequestInput struct {
	OrderID     uuid.UUID
	AmountCents int64
	Reason      string
	RequestedBy *uuid.UUID
	AdminActor  bool
}

// FinalizeInput is one gateway refund settlement attempt.
type FinalizeInput struct {
	ProviderRefundRef string
	Success           bool
	FailureReason     string
	RawPayload        json.RawMessage
}

// FinalizeResult reports what the refund reconciliation did.
type FinalizeResult struct {
	Refund           *models.Refund
	Ignored          bool
	AlreadyProcessed bool
}

// Service owns the refund state machine: REQUESTED moves to PROCESSING when
// the gateway accepts the submission, then settles to SUCCEEDED or FAILED via
// the callback channel.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Refund, error)
	Approve(ctx context.Context, refundID uuid.UUID, actor *outbox.ActorRef) (*models.Refund, error)
	Deny(ctx context.Context, refundID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Refund, error)
	Finalize(ctx context.Context, input FinalizeInput) (*FinalizeResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]RefundSummary, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*RefundList, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	gateway refundGateway
	logg    *logger.Logger
}

// NewService builds the refund lifecycle service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, gateway refundGateway, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("refund gateway required")
	}
	return &service{repo: repo, tx: tx, outbox: ob, gateway: gateway, logg: logg}, nil
}

// Request validates eligibility and opens a REQUESTED refund. The refundable
// balance counts every non-failed refund so overlapping requests cannot
// reserve more than was captured.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Refund, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}

	var refund *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !input.AdminActor {
			if order.UserID == nil || input.RequestedBy == nil || *order.UserID != *input.RequestedBy {
				return pkgerrors.New(pkgerrors.CodeForbidden, "refund requests are limited to the order owner")
			}
		}

		payment, err := repo.FindCapturedPaymentByOrder(ctx, order.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeRefundIneligible, "order has no captured payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if !payment.Status.Refundable() {
			return pkgerrors.New(pkgerrors.CodeRefundIneligible, "payment is not refundable")
		}

		reserved, err := repo.SumReservedByPayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum refunds")
		}
		available := payment.AmountCents - reserved
		if input.AmountCents > available {
			return pkgerrors.New(pkgerrors.CodeRefundIneligible, "refund amount exceeds refundable balance").
				WithDetails(map[string]any{
					"requested_cents": input.AmountCents,
					"available_cents": available,
				})
		}

		refund = &models.Refund{
			OrderID:     order.ID,
			PaymentID:   payment.ID,
			AmountCents: input.AmountCents,
			Currency:    payment.Currency,
			Status:      enums.RefundStatusRequested,
			Reason:      input.Reason,
			RequestedBy: input.RequestedBy,
		}
		if _, err := repo.CreateRefund(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"refund_id":    refund.ID.String(),
			"order_id":     refund.OrderID.String(),
			"amount_cents": refund.AmountCents,
		})
		s.logg.Info(logCtx, "refund requested")
	}
	return refund, nil
}

// Approve submits a REQUESTED refund to the gateway. Acceptance moves it to
// PROCESSING with the provider reference; a gateway error leaves it REQUESTED
// so the approval can be retried.
func (s *service) Approve(ctx context.Context, refundID uuid.UUID, actor *outbox.ActorRef) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}

	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}
	if !refund.Status.CanTransitionTo(enums.RefundStatusProcessing) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("refund is %s, only requested refunds can be approved", refund.Status))
	}

	payment, err := s.repo.FindPaymentByID(ctx, refund.PaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	authToken, err := s.gateway.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.gateway.Refund(ctx, authToken, paymob.RefundParams{
		TransactionRef: payment.ProviderTxnRef,
		AmountCents:    refund.AmountCents,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, refund.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload refund")
		}
		if !current.Status.CanTransitionTo(enums.RefundStatusProcessing) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund state changed during approval")
		}
		updates := map[string]any{
			"status":              enums.RefundStatusProcessing,
			"provider_refund_ref": result.RefundRef,
		}
		if err := repo.UpdateRefund(ctx, refund.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark refund processing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	refund.Status = enums.RefundStatusProcessing
	refund.ProviderRefundRef = &result.RefundRef
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"refund_id":  refund.ID.String(),
			"refund_ref": result.RefundRef,
		})
		s.logg.Info(logCtx, "refund submitted to gateway")
	}
	return refund, nil
}

// Deny closes a REQUESTED refund as FAILED without contacting the gateway.
func (s *service) Deny(ctx context.Context, refundID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "denial reason required")
	}

	var refund *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, refundID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
		}
		if current.Status != enums.RefundStatusRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("refund is %s, only requested refunds can be denied", current.Status))
		}

		if err := repo.UpdateRefund(ctx, current.ID, map[string]any{
			"status":         enums.RefundStatusFailed,
			"failure_reason": reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deny refund")
		}
		current.Status = enums.RefundStatusFailed
		current.FailureReason = &reason
		refund = current

		order, err := repo.FindOrderByIDForUpdate(ctx, current.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventRefundFailed,
			AggregateType: enums.AggregateRefund,
			AggregateID:   current.ID,
			Version:       1,
			Actor:         actor,
			Data: RefundFailedEvent{
				RefundID:    current.ID,
				OrderID:     current.OrderID,
				AmountCents: current.AmountCents,
				Email:       order.Email,
				Reason:      reason,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// Finalize reconciles one gateway refund settlement. Unknown references and
// refunds that are not PROCESSING are acknowledged without side effects so
// callback replays stay harmless.
func (s *service) Finalize(ctx context.Context, input FinalizeInput) (*FinalizeResult, error) {
	if input.ProviderRefundRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider refund ref required")
	}

	result := &FinalizeResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refund, err := repo.FindByProviderRef(ctx, input.ProviderRefundRef)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				result.Ignored = true
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup refund by ref")
		}

		locked, err := repo.FindByIDForUpdate(ctx, refund.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock refund")
		}
		if locked.Status != enums.RefundStatusProcessing {
			result.Refund = locked
			result.AlreadyProcessed = true
			return nil
		}

		order, err := repo.FindOrderByIDForUpdate(ctx, locked.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if input.Success {
			return s.settle(ctx, tx, repo, locked, order, input, result)
		}
		return s.fail(ctx, tx, repo, locked, order, input, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, repo Repository, refund *models.Refund, order *models.Order, input FinalizeInput, result *FinalizeResult) error {
	now := time.Now()
	updates := map[string]any{
		"status":     enums.RefundStatusSucceeded,
		"settled_at": now,
	}
	if len(input.RawPayload) > 0 {
		updates["raw_payload"] = input.RawPayload
	}
	if err := repo.UpdateRefund(ctx, refund.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle refund")
	}
	refund.Status = enums.RefundStatusSucceeded
	refund.SettledAt = &now

	settled, err := repo.SumSettledByPayment(ctx, refund.PaymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum settled refunds")
	}
	payment, err := repo.FindPaymentByID(ctx, refund.PaymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	paymentStatus := enums.PaymentStatusPartiallyRefunded
	if settled >= payment.AmountCents {
		paymentStatus = enums.PaymentStatusRefunded
	}
	if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{"status": paymentStatus}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}

	refundedCents := order.RefundedCents + refund.AmountCents
	fullRefund := refundedCents >= order.TotalCents
	orderUpdates := map[string]any{
		"refunded_cents": refundedCents,
		"payment_status": paymentStatus,
	}
	if fullRefund {
		orderUpdates["status"] = enums.OrderStatusRefunded
	}
	if err := repo.UpdateOrder(ctx, order.ID, orderUpdates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order refund totals")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventRefundSucceeded,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.ID,
		Version:       1,
		Data: RefundSucceededEvent{
			RefundID:    refund.ID,
			OrderID:     order.ID,
			PaymentID:   refund.PaymentID,
			AmountCents: refund.AmountCents,
			Currency:    string(refund.Currency),
			Email:       order.Email,
			FullRefund:  fullRefund,
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund succeeded")
	}

	if fullRefund {
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: OrderRefundedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				Email:         order.Email,
				RefundedCents: refundedCents,
				Currency:      string(order.Currency),
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order refunded")
		}
	}

	result.Refund = refund
	return nil
}

func (s *service) fail(ctx context.Context, tx *gorm.DB, repo Repository, refund *models.Refund, order *models.Order, input FinalizeInput, result *FinalizeResult) error {
	reason := input.FailureReason
	if reason == "" {
		reason = "gateway reported failure"
	}
	updates := map[string]any{
		"status":         enums.RefundStatusFailed,
		"failure_reason": reason,
	}
	if len(input.RawPayload) > 0 {
		updates["raw_payload"] = input.RawPayload
	}
	if err := repo.UpdateRefund(ctx, refund.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail refund")
	}
	refund.Status = enums.RefundStatusFailed
	refund.FailureReason = &reason

	event := outbox.DomainEvent{
		EventType:     enums.EventRefundFailed,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.ID,
		Version:       1,
		Data: RefundFailedEvent{
			RefundID:    refund.ID,
			OrderID:     order.ID,
			AmountCents: refund.AmountCents,
			Email:       order.Email,
			Reason:      reason,
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund failed")
	}

	result.Refund = refund
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	refund, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}
	return refund, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]RefundSummary, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	rows, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order refunds")
	}
	summaries := make([]RefundSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, summarize(row))
	}
	return summaries, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*RefundList, error) {
	list, err := s.repo.ListRefunds(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return list, nil
}
