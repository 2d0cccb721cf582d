package carts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
)

type memCartRepo struct {
	carts   map[uuid.UUID]*models.CartRecord
	creates int
	status  map[uuid.UUID]enums.CartStatus
}

func newMemCartRepo(carts ...*models.CartRecord) *memCartRepo {
	r := &memCartRepo{
		carts:  map[uuid.UUID]*models.CartRecord{},
		status: map[uuid.UUID]enums.CartStatus{},
	}
	for _, cart := range carts {
		r.carts[cart.ID] = cart
	}
	return r
}

func (r *memCartRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *memCartRepo) Create(ctx context.Context, cart *models.CartRecord) error {
	r.creates++
	r.carts[cart.ID] = cart
	return nil
}

func (r *memCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CartRecord, error) {
	if cart, ok := r.carts[id]; ok {
		return cart, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memCartRepo) FindOpenByCustomer(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	for _, cart := range r.carts {
		if cart.CustomerID == customerID && cart.Status != enums.CartStatusConsumed {
			return cart, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memCartRepo) SetStatus(ctx context.Context, cartID uuid.UUID, from, to enums.CartStatus) error {
	if cart, ok := r.carts[cartID]; ok && cart.Status == from {
		cart.Status = to
		r.status[cartID] = to
	}
	return nil
}

func (r *memCartRepo) MarkConsumed(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	if cart, ok := r.carts[cartID]; ok {
		cart.Status = enums.CartStatusConsumed
		cart.ConsumedAt = &at
	}
	return nil
}

func (r *memCartRepo) UpsertItem(ctx context.Context, item *models.CartItem) error {
	cart, ok := r.carts[item.CartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i, existing := range cart.Items {
		if existing.ProductID == item.ProductID {
			cart.Items[i].Quantity = item.Quantity
			cart.Items[i].UnitPriceCents = item.UnitPriceCents
			return nil
		}
	}
	cart.Items = append(cart.Items, *item)
	return nil
}

func (r *memCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	cart, ok := r.carts[cartID]
	if !ok {
		return nil
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	return nil
}

func (r *memCartRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	if cart, ok := r.carts[cartID]; ok {
		cart.Items = nil
	}
	return nil
}

type stubCatalog struct {
	products map[uuid.UUID]*models.Product
}

func (c *stubCatalog) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := c.products[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *stubCatalog) GetName(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := c.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type memOutbox struct {
	events []outbox.DomainEvent
}

func (o *memOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

type cartFixture struct {
	svc     Service
	repo    *memCartRepo
	catalog *stubCatalog
	outbox  *memOutbox
}

func newCartFixture(t *testing.T, carts []*models.CartRecord, catalog map[uuid.UUID]*models.Product) *cartFixture {
	t.Helper()
	f := &cartFixture{
		repo:    newMemCartRepo(carts...),
		catalog: &stubCatalog{products: catalog},
		outbox:  &memOutbox{},
	}
	svc, err := NewService(f.repo, f.catalog, stubTx{}, f.outbox)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func openCart(customerID uuid.UUID) *models.CartRecord {
	return &models.CartRecord{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     enums.CartStatusActive,
		Currency:   "USD",
	}
}

func TestGetOrCreateOpenCartReusesExisting(t *testing.T) {
	customerID := uuid.New()
	cart := openCart(customerID)
	f := newCartFixture(t, []*models.CartRecord{cart}, nil)

	got, err := f.svc.GetOrCreateOpenCart(context.Background(), customerID)
	if err != nil {
		t.Fatalf("GetOrCreateOpenCart: %v", err)
	}
	if got.ID != cart.ID {
		t.Fatalf("expected existing cart %s, got %s", cart.ID, got.ID)
	}
	if f.repo.creates != 0 {
		t.Fatalf("created %d carts, want 0", f.repo.creates)
	}
}

func TestGetOrCreateOpenCartCreatesWhenMissing(t *testing.T) {
	f := newCartFixture(t, nil, nil)

	cart, err := f.svc.GetOrCreateOpenCart(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetOrCreateOpenCart: %v", err)
	}
	if cart.Status != enums.CartStatusActive {
		t.Fatalf("status = %s, want active", cart.Status)
	}
	if f.repo.creates != 1 {
		t.Fatalf("created %d carts, want 1", f.repo.creates)
	}
}

func TestSetItemSnapshotsCatalogPrice(t *testing.T) {
	customerID := uuid.New()
	cart := openCart(customerID)
	product := &models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 1500, IsActive: true}
	f := newCartFixture(t, []*models.CartRecord{cart}, map[uuid.UUID]*models.Product{product.ID: product})

	got, err := f.svc.SetItem(context.Background(), SetItemInput{
		CartID:     cart.ID,
		CustomerID: customerID,
		ProductID:  product.ID,
		Quantity:   3,
	})
	if err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got.Items))
	}
	if got.Items[0].UnitPriceCents != 1500 || got.Items[0].Quantity != 3 {
		t.Fatalf("unexpected item %+v", got.Items[0])
	}

	if len(f.outbox.events) != 1 {
		t.Fatalf("expected one cart_changed event, got %d", len(f.outbox.events))
	}
	event := f.outbox.events[0]
	if event.EventType != enums.EventCartChanged || event.AggregateID != cart.ID {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestSetItemZeroQuantityRemovesLine(t *testing.T) {
	customerID := uuid.New()
	product := &models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 1500, IsActive: true}
	cart := openCart(customerID)
	cart.Items = []models.CartItem{
		{ID: uuid.New(), CartID: cart.ID, ProductID: product.ID, Quantity: 2, UnitPriceCents: 1500},
	}
	f := newCartFixture(t, []*models.CartRecord{cart}, map[uuid.UUID]*models.Product{product.ID: product})

	got, err := f.svc.SetItem(context.Background(), SetItemInput{
		CartID:     cart.ID,
		CustomerID: customerID,
		ProductID:  product.ID,
		Quantity:   0,
	})
	if err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(got.Items))
	}
	if len(f.outbox.events) != 1 {
		t.Fatalf("expected one cart_changed event, got %d", len(f.outbox.events))
	}
}

func TestSetItemUnknownProduct(t *testing.T) {
	customerID := uuid.New()
	cart := openCart(customerID)
	f := newCartFixture(t, []*models.CartRecord{cart}, nil)

	_, err := f.svc.SetItem(context.Background(), SetItemInput{
		CartID:     cart.ID,
		CustomerID: customerID,
		ProductID:  uuid.New(),
		Quantity:   1,
	})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.outbox.events) != 0 {
		t.Fatal("event emitted for failed mutation")
	}
}

func TestMutationsRejectedOnConsumedCart(t *testing.T) {
	customerID := uuid.New()
	cart := openCart(customerID)
	cart.Status = enums.CartStatusConsumed
	f := newCartFixture(t, []*models.CartRecord{cart}, nil)

	_, err := f.svc.RemoveItem(context.Background(), cart.ID, customerID, uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCartStaysEditableDuringCheckout(t *testing.T) {
	customerID := uuid.New()
	product := &models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 1500, IsActive: true}
	cart := openCart(customerID)
	cart.Status = enums.CartStatusCheckout
	f := newCartFixture(t, []*models.CartRecord{cart}, map[uuid.UUID]*models.Product{product.ID: product})

	_, err := f.svc.SetItem(context.Background(), SetItemInput{
		CartID:     cart.ID,
		CustomerID: customerID,
		ProductID:  product.ID,
		Quantity:   1,
	})
	if err != nil {
		t.Fatalf("SetItem during checkout: %v", err)
	}
	if len(f.outbox.events) != 1 {
		t.Fatalf("expected cart_changed event, got %d", len(f.outbox.events))
	}
}

func TestMarkCheckedOutOnlyFlipsActiveCarts(t *testing.T) {
	cart := openCart(uuid.New())
	f := newCartFixture(t, []*models.CartRecord{cart}, nil)

	if err := f.svc.MarkCheckedOut(context.Background(), cart.ID); err != nil {
		t.Fatalf("MarkCheckedOut: %v", err)
	}
	if cart.Status != enums.CartStatusCheckout {
		t.Fatalf("status = %s, want checkout", cart.Status)
	}

	if err := f.svc.MarkConsumed(context.Background(), cart.ID); err != nil {
		t.Fatalf("MarkConsumed: %v", err)
	}
	if cart.Status != enums.CartStatusConsumed || cart.ConsumedAt == nil {
		t.Fatalf("cart not consumed: %+v", cart)
	}
}

func TestClearEmptiesCartAndEmitsEvent(t *testing.T) {
	customerID := uuid.New()
	cart := openCart(customerID)
	cart.Items = []models.CartItem{
		{ID: uuid.New(), CartID: cart.ID, ProductID: uuid.New(), Quantity: 2, UnitPriceCents: 500},
		{ID: uuid.New(), CartID: cart.ID, ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 1200},
	}
	f := newCartFixture(t, []*models.CartRecord{cart}, nil)

	got, err := f.svc.Clear(context.Background(), cart.ID, customerID)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(got.Items))
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventCartChanged {
		t.Fatalf("expected one cart_changed event, got %+v", f.outbox.events)
	}
}

func TestClearRejectsStrangerCart(t *testing.T) {
	cart := openCart(uuid.New())
	f := newCartFixture(t, []*models.CartRecord{cart}, nil)

	_, err := f.svc.Clear(context.Background(), cart.ID, uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for stranger, got %v", err)
	}
}
