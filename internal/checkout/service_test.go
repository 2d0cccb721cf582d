package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/internal/payments"
	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
	"github.com/storefrontlab/storefront-backend/pkg/pagination"
	"github.com/storefrontlab/storefront-backend/pkg/types"
)

type memRepo struct {
	sessions map[uuid.UUID]*models.CheckoutSession
	items    map[uuid.UUID][]models.SessionLineItem
	saveErr  error
	saves    int
	creates  int
}

func newMemRepo(sessions ...*models.CheckoutSession) *memRepo {
	r := &memRepo{
		sessions: map[uuid.UUID]*models.CheckoutSession{},
		items:    map[uuid.UUID][]models.SessionLineItem{},
	}
	for _, s := range sessions {
		r.sessions[s.ID] = s
	}
	return r
}

func (r *memRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *memRepo) Create(ctx context.Context, session *models.CheckoutSession) error {
	r.creates++
	r.sessions[session.ID] = session
	return nil
}

func (r *memRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) FindByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error) {
	for _, s := range r.sessions {
		if s.CartID == cartID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) FindActiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error) {
	for _, s := range r.sessions {
		if s.CartID == cartID && s.Status == enums.SessionStatusActive {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) FindActiveByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error) {
	for _, s := range r.sessions {
		if s.CustomerID == customerID && s.Status == enums.SessionStatusActive {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutSession, error) {
	var out []models.CheckoutSession
	for _, s := range r.sessions {
		if s.Status == enums.SessionStatusActive && !s.ExpiresAt.After(cutoff) {
			out = append(out, *s)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*SessionList, error) {
	list := &SessionList{}
	for _, s := range r.sessions {
		if s.CustomerID != customerID {
			continue
		}
		if s.Status != enums.SessionStatusConfirmed && s.Status != enums.SessionStatusCompleted {
			continue
		}
		list.Sessions = append(list.Sessions, *s)
	}
	return list, nil
}

func (r *memRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	delete(r.sessions, id)
	delete(r.items, id)
	return nil
}

func (r *memRepo) Save(ctx context.Context, session *models.CheckoutSession) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	session.Version++
	r.sessions[session.ID] = session
	return nil
}

func (r *memRepo) ReplaceLineItems(ctx context.Context, sessionID uuid.UUID, items []models.SessionLineItem) error {
	r.items[sessionID] = items
	return nil
}

type memCarts struct {
	carts      map[uuid.UUID]*models.CartRecord
	checkedOut []uuid.UUID
	consumed   []uuid.UUID
}

func newMemCarts(carts ...*models.CartRecord) *memCarts {
	c := &memCarts{carts: map[uuid.UUID]*models.CartRecord{}}
	for _, cart := range carts {
		c.carts[cart.ID] = cart
	}
	return c
}

func (c *memCarts) FindByID(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	if cart, ok := c.carts[cartID]; ok {
		return cart, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *memCarts) MarkCheckedOut(ctx context.Context, cartID uuid.UUID) error {
	c.checkedOut = append(c.checkedOut, cartID)
	return nil
}

func (c *memCarts) MarkConsumed(ctx context.Context, cartID uuid.UUID) error {
	c.consumed = append(c.consumed, cartID)
	return nil
}

type memProducts struct {
	names map[uuid.UUID]string
}

func (p *memProducts) GetName(ctx context.Context, productID uuid.UUID) (string, error) {
	if name, ok := p.names[productID]; ok {
		return name, nil
	}
	return "", gorm.ErrRecordNotFound
}

type stubTx struct {
	calls int
}

func (s *stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	return fn(nil)
}

type memOutbox struct {
	events []outbox.DomainEvent
}

func (o *memOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

func (o *memOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

type stubGateway struct {
	id        enums.PaymentProviderID
	available bool
	ref       string
	err       error
	requests  []payments.Request
}

func (g *stubGateway) ID() enums.PaymentProviderID          { return g.id }
func (g *stubGateway) IsAvailable(ctx context.Context) bool { return g.available }

func (g *stubGateway) Initiate(ctx context.Context, req payments.Request) (string, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	return g.ref, nil
}

func (g *stubGateway) Confirm(ctx context.Context, ref string) error { return nil }
func (g *stubGateway) Cancel(ctx context.Context, ref string) error  { return nil }

type stubRegistry struct {
	gateway *stubGateway
}

func (r *stubRegistry) FindByID(id enums.PaymentProviderID) (payments.Provider, error) {
	if r.gateway == nil || r.gateway.id != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment provider not configured")
	}
	return r.gateway, nil
}

type serviceFixture struct {
	svc      Service
	repo     *memRepo
	carts    *memCarts
	products *memProducts
	tx       *stubTx
	outbox   *memOutbox
	gateway  *stubGateway
}

func newServiceFixture(t *testing.T, sessions []*models.CheckoutSession, carts []*models.CartRecord, names map[uuid.UUID]string) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:     newMemRepo(sessions...),
		carts:    newMemCarts(carts...),
		products: &memProducts{names: names},
		tx:       &stubTx{},
		outbox:   &memOutbox{},
		gateway:  &stubGateway{id: enums.PaymentProviderSquare, available: true, ref: "pay_123"},
	}
	svc, err := NewService(
		f.repo, f.carts, f.products, f.tx, f.outbox,
		&stubRegistry{gateway: f.gateway},
		config.CheckoutConfig{SessionTTL: 30 * time.Minute},
		nil,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func testCart(customerID uuid.UUID, productID uuid.UUID) *models.CartRecord {
	return &models.CartRecord{
		ID:         uuid.New(),
		CustomerID: customerID,
		Currency:   "USD",
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: productID, Quantity: 2, UnitPriceCents: 1500},
		},
	}
}

func activeSession(customerID uuid.UUID) *models.CheckoutSession {
	return &models.CheckoutSession{
		ID:          uuid.New(),
		CartID:      uuid.New(),
		CustomerID:  customerID,
		Status:      enums.SessionStatusActive,
		CurrentStep: enums.StepBuyerInfo,
		Currency:    "USD",
		Version:     1,
		Items: []models.SessionLineItem{
			{ID: uuid.New(), ProductID: uuid.New(), ProductName: "Widget", UnitPriceCents: 1500, Quantity: 2},
		},
		SubtotalCents: 3000,
		TotalCents:    3000,
		ExpiresAt:     time.Now().UTC().Add(30 * time.Minute),
	}
}

func TestStartCheckoutCreatesSessionFromCart(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	cart := testCart(customerID, productID)
	f := newServiceFixture(t, nil, []*models.CartRecord{cart}, map[uuid.UUID]string{productID: "Widget"})

	session, err := f.svc.StartCheckout(context.Background(), StartCheckoutInput{CartID: cart.ID, CustomerID: customerID})
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	if session.Status != enums.SessionStatusActive {
		t.Errorf("status = %s, want active", session.Status)
	}
	if session.CurrentStep != enums.StepBuyerInfo {
		t.Errorf("current step = %s, want buyer_info", session.CurrentStep)
	}
	if len(session.Items) != 1 || session.Items[0].ProductName != "Widget" {
		t.Errorf("unexpected line items %+v", session.Items)
	}
	if session.SubtotalCents != 3000 || session.TotalCents != 3000 {
		t.Errorf("subtotal %d total %d, want 3000/3000", session.SubtotalCents, session.TotalCents)
	}
	if session.ExpiresAt.Before(time.Now().UTC().Add(29 * time.Minute)) {
		t.Errorf("expiry %s not pushed out by the session ttl", session.ExpiresAt)
	}
	if len(f.carts.checkedOut) != 1 || f.carts.checkedOut[0] != cart.ID {
		t.Errorf("cart was not marked checked out: %v", f.carts.checkedOut)
	}
}

func TestStartCheckoutResumesExistingSession(t *testing.T) {
	customerID := uuid.New()
	existing := activeSession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{existing}, nil, nil)

	session, err := f.svc.StartCheckout(context.Background(), StartCheckoutInput{CartID: existing.CartID, CustomerID: customerID})
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if session.ID != existing.ID {
		t.Fatalf("expected existing session %s, got %s", existing.ID, session.ID)
	}
	if f.repo.creates != 0 {
		t.Fatalf("expected no new session, got %d creates", f.repo.creates)
	}
}

func TestStartCheckoutRejectsCartInAnotherCheckout(t *testing.T) {
	existing := activeSession(uuid.New())
	f := newServiceFixture(t, []*models.CheckoutSession{existing}, nil, nil)

	_, err := f.svc.StartCheckout(context.Background(), StartCheckoutInput{CartID: existing.CartID, CustomerID: uuid.New()})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStartCheckoutRejectsEmptyCart(t *testing.T) {
	customerID := uuid.New()
	cart := &models.CartRecord{ID: uuid.New(), CustomerID: customerID, Currency: "USD"}
	f := newServiceFixture(t, nil, []*models.CartRecord{cart}, nil)

	_, err := f.svc.StartCheckout(context.Background(), StartCheckoutInput{CartID: cart.ID, CustomerID: customerID})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStepSubmissionsAdvanceTheFlow(t *testing.T) {
	customerID := uuid.New()
	session := activeSession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)
	ctx := context.Background()

	_, err := f.svc.SubmitBuyerInfo(ctx, SubmitBuyerInfoInput{
		SessionID:  session.ID,
		CustomerID: customerID,
		Info:       types.BuyerInfo{FullName: "Ada Lovelace", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("SubmitBuyerInfo: %v", err)
	}
	if session.CurrentStep != enums.StepDelivery {
		t.Fatalf("after buyer info, step = %s", session.CurrentStep)
	}

	_, err = f.svc.SubmitDelivery(ctx, SubmitDeliveryInput{
		SessionID:  session.ID,
		CustomerID: customerID,
		Address:    types.Address{Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "12345", Country: "US"},
		Shipping:   types.ShippingOption{Code: "standard", Title: "Standard", PriceCents: 500},
	})
	if err != nil {
		t.Fatalf("SubmitDelivery: %v", err)
	}
	if session.CurrentStep != enums.StepPayment {
		t.Fatalf("after delivery, step = %s", session.CurrentStep)
	}
	if session.TotalCents != session.SubtotalCents+500 {
		t.Fatalf("total %d does not include shipping", session.TotalCents)
	}

	_, err = f.svc.SubmitPaymentSelection(ctx, SubmitPaymentSelectionInput{
		SessionID:  session.ID,
		CustomerID: customerID,
		Selection:  types.PaymentSelection{Provider: enums.PaymentProviderSquare, SourceToken: "cnon:ok"},
	})
	if err != nil {
		t.Fatalf("SubmitPaymentSelection: %v", err)
	}
	if session.CurrentStep != enums.StepReview {
		t.Fatalf("after payment, step = %s", session.CurrentStep)
	}
	for _, step := range []enums.CheckoutStep{enums.StepBuyerInfo, enums.StepDelivery, enums.StepPayment} {
		if !session.HasCompletedStep(step) {
			t.Errorf("step %s not marked completed", step)
		}
	}
}

func TestSubmitDeliveryRequiresBuyerInfo(t *testing.T) {
	customerID := uuid.New()
	session := activeSession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	_, err := f.svc.SubmitDelivery(context.Background(), SubmitDeliveryInput{
		SessionID:  session.ID,
		CustomerID: customerID,
		Address:    types.Address{Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "12345", Country: "US"},
		Shipping:   types.ShippingOption{Code: "standard", PriceCents: 500},
	})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestSubmitRejectedOnceSessionLeavesActive(t *testing.T) {
	customerID := uuid.New()
	session := activeSession(customerID)
	session.Status = enums.SessionStatusConfirmed
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	_, err := f.svc.SubmitBuyerInfo(context.Background(), SubmitBuyerInfoInput{
		SessionID:  session.ID,
		CustomerID: customerID,
		Info:       types.BuyerInfo{FullName: "Ada Lovelace", Email: "ada@example.com"},
	})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func readySession(customerID uuid.UUID) *models.CheckoutSession {
	session := activeSession(customerID)
	session.MarkStepCompleted(enums.StepBuyerInfo)
	session.MarkStepCompleted(enums.StepDelivery)
	session.MarkStepCompleted(enums.StepPayment)
	session.CurrentStep = enums.StepReview
	session.ShippingCents = 500
	session.TotalCents = session.SubtotalCents + 500
	session.PaymentSelection = &types.PaymentSelection{Provider: enums.PaymentProviderSquare, SourceToken: "cnon:ok"}
	return session
}

func TestConfirmInitiatesPaymentAndEmitsEvent(t *testing.T) {
	customerID := uuid.New()
	session := readySession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	confirmed, err := f.svc.Confirm(context.Background(), ConfirmInput{SessionID: session.ID, CustomerID: customerID})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if confirmed.Status != enums.SessionStatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
	if confirmed.CurrentStep != enums.StepConfirmation {
		t.Errorf("step = %s, want confirmation", confirmed.CurrentStep)
	}
	if !confirmed.HasCompletedStep(enums.StepReview) {
		t.Error("review step not marked completed")
	}
	if confirmed.PaymentRef == nil || *confirmed.PaymentRef != "pay_123" {
		t.Errorf("payment ref = %v, want pay_123", confirmed.PaymentRef)
	}
	if confirmed.ConfirmedAt == nil {
		t.Error("confirmed timestamp missing")
	}

	if len(f.gateway.requests) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(f.gateway.requests))
	}
	req := f.gateway.requests[0]
	if req.AmountCents != session.TotalCents {
		t.Errorf("charged %d, want %d", req.AmountCents, session.TotalCents)
	}
	if req.IdempotencyKey != "checkout-"+session.ID.String() {
		t.Errorf("idempotency key = %s", req.IdempotencyKey)
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventSessionConfirmed {
		t.Fatalf("expected one session_confirmed event, got %+v", f.outbox.events)
	}
}

func TestConfirmGatewayFailureLeavesSessionUntouched(t *testing.T) {
	customerID := uuid.New()
	session := readySession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)
	f.gateway.err = pkgerrors.New(pkgerrors.CodePayment, "card declined")

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{SessionID: session.ID, CustomerID: customerID})
	if pkgerrors.CodeOf(err) != pkgerrors.CodePayment {
		t.Fatalf("expected payment error, got %v", err)
	}

	if session.Status != enums.SessionStatusActive {
		t.Errorf("status = %s, want active after gateway failure", session.Status)
	}
	if session.PaymentRef != nil {
		t.Errorf("payment ref set after gateway failure: %s", *session.PaymentRef)
	}
	if f.repo.saves != 0 {
		t.Errorf("session was persisted %d times after gateway failure", f.repo.saves)
	}
	if len(f.outbox.events) != 0 {
		t.Errorf("events emitted after gateway failure: %+v", f.outbox.events)
	}
}

func TestConfirmRequiresCompletedPaymentStep(t *testing.T) {
	customerID := uuid.New()
	session := activeSession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{SessionID: session.ID, CustomerID: customerID})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.gateway.requests) != 0 {
		t.Fatal("gateway called for an unready session")
	}
}

func TestConfirmRetryAfterSuccessIsIdempotent(t *testing.T) {
	customerID := uuid.New()
	session := readySession(customerID)
	session.Status = enums.SessionStatusConfirmed
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	confirmed, err := f.svc.Confirm(context.Background(), ConfirmInput{SessionID: session.ID, CustomerID: customerID})
	if err != nil {
		t.Fatalf("Confirm retry: %v", err)
	}
	if confirmed.ID != session.ID {
		t.Fatalf("unexpected session %s", confirmed.ID)
	}
	if len(f.gateway.requests) != 0 {
		t.Fatal("gateway called again on retry")
	}
}

func TestCompleteMovesConfirmedSessionToCompleted(t *testing.T) {
	session := readySession(uuid.New())
	session.Status = enums.SessionStatusConfirmed
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	if err := f.svc.Complete(context.Background(), session.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if session.Status != enums.SessionStatusCompleted {
		t.Fatalf("status = %s, want completed", session.Status)
	}
	if session.CompletedAt == nil {
		t.Fatal("completed timestamp missing")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventSessionCompleted {
		t.Fatalf("expected session_completed event, got %+v", f.outbox.events)
	}
	if len(f.carts.consumed) != 1 || f.carts.consumed[0] != session.CartID {
		t.Fatalf("cart not marked consumed: %v", f.carts.consumed)
	}

	// A second delivery of the same event is a no-op.
	if err := f.svc.Complete(context.Background(), session.ID); err != nil {
		t.Fatalf("Complete retry: %v", err)
	}
	if len(f.outbox.events) != 1 {
		t.Fatalf("retry emitted another event: %+v", f.outbox.events)
	}
}

func TestCompleteRejectsActiveSession(t *testing.T) {
	session := activeSession(uuid.New())
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	err := f.svc.Complete(context.Background(), session.ID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAbandonActiveSession(t *testing.T) {
	customerID := uuid.New()
	session := activeSession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	if err := f.svc.Abandon(context.Background(), session.ID, customerID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if session.Status != enums.SessionStatusAbandoned {
		t.Fatalf("status = %s, want abandoned", session.Status)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventSessionAbandoned {
		t.Fatalf("expected session_abandoned event, got %+v", f.outbox.events)
	}
}

func TestAbandonConfirmedSessionRejected(t *testing.T) {
	customerID := uuid.New()
	session := readySession(customerID)
	session.Status = enums.SessionStatusConfirmed
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	err := f.svc.Abandon(context.Background(), session.ID, customerID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestExpireDueSweepsOverdueSessions(t *testing.T) {
	overdue := activeSession(uuid.New())
	overdue.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	fresh := activeSession(uuid.New())
	f := newServiceFixture(t, []*models.CheckoutSession{overdue, fresh}, nil, nil)

	expired, err := f.svc.ExpireDue(context.Background(), time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired %d sessions, want 1", expired)
	}
	if overdue.Status != enums.SessionStatusExpired {
		t.Fatalf("overdue status = %s, want expired", overdue.Status)
	}
	if fresh.Status != enums.SessionStatusActive {
		t.Fatalf("fresh session touched: %s", fresh.Status)
	}
}

func TestExpireDueSkipsLostRaces(t *testing.T) {
	overdue := activeSession(uuid.New())
	overdue.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	f := newServiceFixture(t, []*models.CheckoutSession{overdue}, nil, nil)
	f.repo.saveErr = pkgerrors.New(pkgerrors.CodeConflict, "session was modified concurrently")

	expired, err := f.svc.ExpireDue(context.Background(), time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expired %d sessions, want 0", expired)
	}
}

func TestGetSessionHidesOtherCustomers(t *testing.T) {
	session := activeSession(uuid.New())
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	_, err := f.svc.GetSession(context.Background(), session.ID, uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanAccessStepWithoutSessionRedirectsToCart(t *testing.T) {
	f := newServiceFixture(t, nil, nil, nil)

	decision, err := f.svc.CanAccessStep(context.Background(), uuid.New(), uuid.New(), enums.StepDelivery)
	if err != nil {
		t.Fatalf("CanAccessStep: %v", err)
	}
	if !decision.ToCart {
		t.Fatalf("expected cart redirect, got %+v", decision)
	}
}

func TestGetActiveSessionFindsCustomerSession(t *testing.T) {
	customerID := uuid.New()
	session := activeSession(customerID)
	f := newServiceFixture(t, []*models.CheckoutSession{session}, nil, nil)

	got, err := f.svc.GetActiveSession(context.Background(), customerID)
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("got session %s, want %s", got.ID, session.ID)
	}

	_, err = f.svc.GetActiveSession(context.Background(), uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for customer without session, got %v", err)
	}
}
