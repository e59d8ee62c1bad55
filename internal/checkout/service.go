package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/internal/orders"
	"github.com/karimfahmy/nilecart-backend/internal/pricing"
	"github.com/karimfahmy/nilecart-backend/internal/shipping"
	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/paymob"
	"github.com/karimfahmy/nilecart-backend/pkg/types"
)

// paymentGateway is the slice of the provider checkout needs: the full
// three-call handshake collapsed behind one method.
type paymentGateway interface {
	CreatePaymentSession(ctx context.Context, order paymob.RegisterOrderParams, billing paymob.BillingData) (*paymob.PaymentSession, error)
}

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (*orders.CreateResult, error)
	SetProviderOrderRef(ctx context.Context, orderID uuid.UUID, ref string) error
}

// CheckoutInput is one checkout submission.
type CheckoutInput struct {
	UserID        *uuid.UUID
	Email         string
	Lines         []pricing.LineInput
	Address       types.ShippingAddress
	DiscountCents int64
	RateID        string
}

// Result is everything the storefront needs to hand off to the payment
// widget. AccessToken is only returned here; guests must keep it to see the
// order later.
type Result struct {
	Order          *models.Order
	AccessToken    string
	GatewayOrderID int64
	PaymentToken   string
}

// Service drives the checkout sequence: freeze pricing, open a DRAFT order,
// then run the gateway handshake. A gateway failure leaves the DRAFT order
// behind with no session attached so the customer can retry.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*Result, error)
}

type service struct {
	orders  orderCreator
	gateway paymentGateway
	logg    *logger.Logger
}

// NewService builds the checkout orchestration service.
func NewService(orderSvc orderCreator, gateway paymentGateway, logg *logger.Logger) (Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{orders: orderSvc, gateway: gateway, logg: logg}, nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*Result, error) {
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	rateID := input.RateID
	if rateID == "" {
		rateID = "standard"
	}
	rate, ok := shipping.RateByID(input.Address.Governorate, rateID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping rate").
			WithDetails(map[string]any{"rate_id": rateID})
	}

	snapshot, err := pricing.Build(input.Lines, rate.PriceCents, input.DiscountCents)
	if err != nil {
		return nil, err
	}

	created, err := s.orders.Create(ctx, orders.CreateInput{
		UserID:   input.UserID,
		Email:    input.Email,
		Address:  input.Address,
		Zone:     shipping.ZoneFor(input.Address.Governorate),
		Snapshot: snapshot,
		Currency: enums.CurrencyEGP,
	})
	if err != nil {
		return nil, err
	}
	order := created.Order

	session, err := s.gateway.CreatePaymentSession(ctx, registerParams(order, snapshot), billingData(input.Email, input.Address))
	if err != nil {
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Warn(logCtx, "payment session setup failed, order left in draft")
		}
		return nil, err
	}

	ref := strconv.FormatInt(session.GatewayOrderID, 10)
	if err := s.orders.SetProviderOrderRef(ctx, order.ID, ref); err != nil {
		return nil, err
	}
	order.ProviderOrderRef = &ref

	return &Result{
		Order:          order,
		AccessToken:    created.AccessToken,
		GatewayOrderID: session.GatewayOrderID,
		PaymentToken:   session.PaymentToken,
	}, nil
}

func registerParams(order *models.Order, snapshot *pricing.Snapshot) paymob.RegisterOrderParams {
	items := make([]paymob.OrderItem, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		items = append(items, paymob.OrderItem{
			Name:        line.Name,
			AmountCents: line.UnitCents,
			Quantity:    line.Qty,
		})
	}
	return paymob.RegisterOrderParams{
		MerchantOrderID: order.ID.String(),
		AmountCents:     order.TotalCents,
		Currency:        string(order.Currency),
		Items:           items,
	}
}

func billingData(email string, addr types.ShippingAddress) paymob.BillingData {
	first, last := splitName(addr.RecipientName)
	billing := paymob.BillingData{
		FirstName:   first,
		LastName:    last,
		Email:       email,
		PhoneNumber: addr.Phone,
		Street:      addr.Line1,
		City:        addr.City,
		State:       addr.Governorate,
		Country:     addr.Country,
	}
	if addr.Line2 != nil {
		billing.Building = *addr.Line2
	}
	if addr.PostalCode != nil {
		billing.PostalCode = *addr.PostalCode
	}
	return billing
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
