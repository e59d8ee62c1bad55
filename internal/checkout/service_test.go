package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/internal/orders"
	"github.com/karimfahmy/nilecart-backend/internal/pricing"
	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/paymob"
	"github.com/karimfahmy/nilecart-backend/pkg/types"
)

type stubOrderCreator struct {
	createInput  orders.CreateInput
	createErr    error
	providerRefs map[uuid.UUID]string
}

func (s *stubOrderCreator) Create(ctx context.Context, input orders.CreateInput) (*orders.CreateResult, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createInput = input
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   1001,
		Email:         input.Email,
		Status:        enums.OrderStatusDraft,
		Currency:      input.Currency,
		SubtotalCents: input.Snapshot.SubtotalCents,
		ShippingCents: input.Snapshot.ShippingCents,
		DiscountCents: input.Snapshot.DiscountCents,
		TotalCents:    input.Snapshot.TotalCents,
		ShippingZone:  input.Zone,
	}
	return &orders.CreateResult{Order: order, AccessToken: "guest-token"}, nil
}

func (s *stubOrderCreator) SetProviderOrderRef(ctx context.Context, orderID uuid.UUID, ref string) error {
	if s.providerRefs == nil {
		s.providerRefs = make(map[uuid.UUID]string)
	}
	s.providerRefs[orderID] = ref
	return nil
}

type stubPaymentGateway struct {
	order   paymob.RegisterOrderParams
	billing paymob.BillingData
	err     error
}

func (s *stubPaymentGateway) CreatePaymentSession(ctx context.Context, order paymob.RegisterOrderParams, billing paymob.BillingData) (*paymob.PaymentSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.order = order
	s.billing = billing
	return &paymob.PaymentSession{GatewayOrderID: 98765, PaymentToken: "pay-token"}, nil
}

func cairoAddress() types.ShippingAddress {
	return types.ShippingAddress{
		RecipientName: "Mona Hassan",
		Phone:         "+201001234567",
		Line1:         "12 Tahrir St",
		City:          "Cairo",
		Governorate:   "Cairo",
		Country:       "EG",
	}
}

func cartLines() []pricing.LineInput {
	return []pricing.LineInput{
		{SKU: "TEE-BLK-M", Name: "Black Tee", UnitCents: 15000, Qty: 3},
	}
}

func TestCheckout(t *testing.T) {
	creator := &stubOrderCreator{}
	gateway := &stubPaymentGateway{}
	svc, err := NewService(creator, gateway, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	result, err := svc.Checkout(context.Background(), CheckoutInput{
		Email:   "mona@example.com",
		Lines:   cartLines(),
		Address: cairoAddress(),
		RateID:  "standard",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.AccessToken != "guest-token" {
		t.Fatalf("unexpected access token %q", result.AccessToken)
	}
	if result.PaymentToken != "pay-token" {
		t.Fatalf("unexpected payment token %q", result.PaymentToken)
	}
	// Cairo standard shipping is 5000 piasters on top of the 45000 cart.
	if result.Order.TotalCents != 50000 {
		t.Fatalf("expected total 50000 got %d", result.Order.TotalCents)
	}
	if creator.createInput.Zone != "greater_cairo" {
		t.Fatalf("expected greater_cairo zone got %s", creator.createInput.Zone)
	}
	if gateway.order.MerchantOrderID != result.Order.ID.String() {
		t.Fatal("merchant order id must round-trip our order id")
	}
	if gateway.billing.FirstName != "Mona" || gateway.billing.LastName != "Hassan" {
		t.Fatalf("unexpected billing name %s %s", gateway.billing.FirstName, gateway.billing.LastName)
	}
	if ref := creator.providerRefs[result.Order.ID]; ref != "98765" {
		t.Fatalf("expected provider ref 98765 got %q", ref)
	}
	if result.Order.ProviderOrderRef == nil || *result.Order.ProviderOrderRef != "98765" {
		t.Fatal("provider order ref not set on returned order")
	}
}

func TestCheckoutUnknownRate(t *testing.T) {
	svc, _ := NewService(&stubOrderCreator{}, &stubPaymentGateway{}, nil)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		Email:   "mona@example.com",
		Lines:   cartLines(),
		Address: cairoAddress(),
		RateID:  "drone",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCheckoutGatewayFailureLeavesDraft(t *testing.T) {
	creator := &stubOrderCreator{}
	gateway := &stubPaymentGateway{
		err: pkgerrors.New(pkgerrors.CodeGatewayAuth, "paymob authentication failed"),
	}
	svc, _ := NewService(creator, gateway, nil)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		Email:   "mona@example.com",
		Lines:   cartLines(),
		Address: cairoAddress(),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeGatewayAuth {
		t.Fatalf("expected gateway error got %v", err)
	}
	if len(creator.providerRefs) != 0 {
		t.Fatal("failed handshake must not attach a provider ref")
	}
	if meta := pkgerrors.MetadataFor(pkgerrors.As(err).Code()); meta.PublicMessage != "payment setup failed" {
		t.Fatalf("unexpected public message %q", meta.PublicMessage)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, _ := NewService(&stubOrderCreator{}, &stubPaymentGateway{}, nil)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		Email:   "mona@example.com",
		Address: cairoAddress(),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}
