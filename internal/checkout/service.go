package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/internal/payments"
	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
	"github.com/storefrontlab/storefront-backend/pkg/outbox/payloads"
	"github.com/storefrontlab/storefront-backend/pkg/pagination"
	"github.com/storefrontlab/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type providerRegistry interface {
	FindByID(id enums.PaymentProviderID) (payments.Provider, error)
}

// Service executes the checkout session lifecycle.
type Service interface {
	StartCheckout(ctx context.Context, input StartCheckoutInput) (*models.CheckoutSession, error)
	GetSession(ctx context.Context, sessionID, customerID uuid.UUID) (*models.CheckoutSession, error)
	GetActiveSession(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error)
	CanAccessStep(ctx context.Context, sessionID, customerID uuid.UUID, step enums.CheckoutStep) (AccessDecision, error)
	SubmitBuyerInfo(ctx context.Context, input SubmitBuyerInfoInput) (*models.CheckoutSession, error)
	SubmitDelivery(ctx context.Context, input SubmitDeliveryInput) (*models.CheckoutSession, error)
	SubmitPaymentSelection(ctx context.Context, input SubmitPaymentSelectionInput) (*models.CheckoutSession, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.CheckoutSession, error)
	Complete(ctx context.Context, sessionID uuid.UUID) error
	Abandon(ctx context.Context, sessionID, customerID uuid.UUID) error
	Expire(ctx context.Context, sessionID uuid.UUID) error
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
	ListHistory(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*SessionList, error)
}

// StartCheckoutInput converts a cart into a new checkout session.
type StartCheckoutInput struct {
	CartID     uuid.UUID
	CustomerID uuid.UUID
}

// SubmitBuyerInfoInput carries the buyer info step payload.
type SubmitBuyerInfoInput struct {
	SessionID  uuid.UUID
	CustomerID uuid.UUID
	Info       types.BuyerInfo
}

// SubmitDeliveryInput carries the delivery step payload.
type SubmitDeliveryInput struct {
	SessionID  uuid.UUID
	CustomerID uuid.UUID
	Address    types.Address
	Shipping   types.ShippingOption
}

// SubmitPaymentSelectionInput carries the payment step payload.
type SubmitPaymentSelectionInput struct {
	SessionID  uuid.UUID
	CustomerID uuid.UUID
	Selection  types.PaymentSelection
}

// ConfirmInput triggers the payment call for a session.
type ConfirmInput struct {
	SessionID  uuid.UUID
	CustomerID uuid.UUID
}

type service struct {
	repo      Repository
	carts     CartSource
	products  ProductNames
	tx        txRunner
	outbox    outboxPublisher
	providers providerRegistry
	cfg       config.CheckoutConfig
	logg      *logger.Logger
}

// NewService builds the checkout orchestrator with its required collaborators.
func NewService(
	repo Repository,
	carts CartSource,
	products ProductNames,
	tx txRunner,
	publisher outboxPublisher,
	providers providerRegistry,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart source required")
	}
	if products == nil {
		return nil, fmt.Errorf("product names required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if providers == nil {
		return nil, fmt.Errorf("provider registry required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &service{
		repo:      repo,
		carts:     carts,
		products:  products,
		tx:        tx,
		outbox:    publisher,
		providers: providers,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

func (s *service) StartCheckout(ctx context.Context, input StartCheckoutInput) (*models.CheckoutSession, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}

	// Starting twice from the same cart resumes the open session.
	existing, err := s.repo.FindActiveByCartID(ctx, input.CartID)
	if err == nil {
		if existing.CustomerID != input.CustomerID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is already in checkout")
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up active session")
	}

	cart, err := s.carts.FindByID(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.CustomerID != input.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if cart.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	sessionID := uuid.New()
	items, subtotal, err := buildLineItems(ctx, s.products, sessionID, cart)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &models.CheckoutSession{
		ID:             sessionID,
		CartID:         cart.ID,
		CustomerID:     cart.CustomerID,
		Status:         enums.SessionStatusActive,
		CurrentStep:    enums.StepBuyerInfo,
		CompletedSteps: pq.StringArray{},
		Currency:       cart.Currency,
		SubtotalCents:  subtotal,
		TotalCents:     subtotal,
		Version:        1,
		Items:          items,
		ExpiresAt:      now.Add(s.cfg.SessionTTL),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, session)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	// The cart stays mutable after this tag; the synchronizer reconciles any
	// further edits into the session.
	if err := s.carts.MarkCheckedOut(ctx, cart.ID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithCartID(ctx, cart.ID.String()), "mark cart checked out", err)
	}

	return session, nil
}

func (s *service) GetSession(ctx context.Context, sessionID, customerID uuid.UUID) (*models.CheckoutSession, error) {
	return s.loadOwnedSession(ctx, sessionID, customerID)
}

func (s *service) GetActiveSession(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	session, err := s.repo.FindActiveByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active checkout session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active checkout session")
	}
	return session, nil
}

func (s *service) CanAccessStep(ctx context.Context, sessionID, customerID uuid.UUID, step enums.CheckoutStep) (AccessDecision, error) {
	if !step.IsValid() {
		return AccessDecision{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown checkout step %q", step))
	}
	session, err := s.loadOwnedSession(ctx, sessionID, customerID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return redirectToCart(), nil
		}
		return AccessDecision{}, err
	}
	return CanAccess(session, step), nil
}

func (s *service) SubmitBuyerInfo(ctx context.Context, input SubmitBuyerInfoInput) (*models.CheckoutSession, error) {
	if strings.TrimSpace(input.Info.FullName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer name required")
	}
	if strings.TrimSpace(input.Info.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email required")
	}

	session, err := s.loadOwnedSession(ctx, input.SessionID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(session.Status); err != nil {
		return nil, err
	}

	info := input.Info
	session.BuyerInfo = &info
	advanceAfter(session, enums.StepBuyerInfo)

	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) SubmitDelivery(ctx context.Context, input SubmitDeliveryInput) (*models.CheckoutSession, error) {
	if missing := input.Address.Validate(); missing != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("delivery address missing %s", missing))
	}
	if strings.TrimSpace(input.Shipping.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping option required")
	}
	if input.Shipping.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost cannot be negative")
	}

	session, err := s.loadOwnedSession(ctx, input.SessionID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(session.Status); err != nil {
		return nil, err
	}
	if !session.HasCompletedStep(enums.StepBuyerInfo) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "buyer info must be submitted before delivery")
	}

	address := input.Address
	shipping := input.Shipping
	session.DeliveryAddress = &address
	session.ShippingOption = &shipping
	session.ShippingCents = shipping.PriceCents
	session.TotalCents = session.SubtotalCents + session.ShippingCents
	advanceAfter(session, enums.StepDelivery)

	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) SubmitPaymentSelection(ctx context.Context, input SubmitPaymentSelectionInput) (*models.CheckoutSession, error) {
	if !input.Selection.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment provider %q", input.Selection.Provider))
	}
	if strings.TrimSpace(input.Selection.SourceToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source token required")
	}

	session, err := s.loadOwnedSession(ctx, input.SessionID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(session.Status); err != nil {
		return nil, err
	}
	if !session.HasCompletedStep(enums.StepDelivery) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery must be submitted before payment")
	}

	selection := input.Selection
	session.PaymentSelection = &selection
	advanceAfter(session, enums.StepPayment)

	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.CheckoutSession, error) {
	session, err := s.loadOwnedSession(ctx, input.SessionID, input.CustomerID)
	if err != nil {
		return nil, err
	}

	// Retrying a confirm that already went through is not an error.
	if session.Status == enums.SessionStatusConfirmed || session.Status == enums.SessionStatusCompleted {
		return session, nil
	}
	if err := guardMutable(session.Status); err != nil {
		return nil, err
	}
	if !session.HasCompletedStep(enums.StepPayment) || session.PaymentSelection == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment selection must be completed before confirming")
	}
	if len(session.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "session has no line items to charge")
	}

	session.TotalCents = session.SubtotalCents + session.ShippingCents

	provider, err := s.providers.FindByID(session.PaymentSelection.Provider)
	if err != nil {
		return nil, err
	}
	if !provider.IsAvailable(ctx) {
		return nil, pkgerrors.New(pkgerrors.CodePayment, fmt.Sprintf("payment provider %s is unavailable", provider.ID()))
	}

	// The gateway call happens before any persistence so a failure leaves the
	// session exactly as it was. The idempotency key is stable per session,
	// which makes gateway-side retries safe.
	ref, err := provider.Initiate(ctx, payments.Request{
		SessionID:      session.ID,
		CustomerID:     session.CustomerID,
		AmountCents:    session.TotalCents,
		Currency:       session.Currency,
		SourceToken:    session.PaymentSelection.SourceToken,
		IdempotencyKey: "checkout-" + session.ID.String(),
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePayment, err, "payment was not accepted")
	}

	now := time.Now().UTC()
	session.Status = enums.SessionStatusConfirmed
	session.MarkStepCompleted(enums.StepReview)
	session.CurrentStep = enums.StepConfirmation
	session.PaymentRef = &ref
	session.ConfirmedAt = &now

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, session); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionConfirmed,
			AggregateType: enums.AggregateCheckoutSession,
			AggregateID:   session.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerID: session.CustomerID},
			Data: payloads.SessionConfirmedEvent{
				SessionID:   session.ID,
				CartID:      session.CartID,
				CustomerID:  session.CustomerID,
				Provider:    session.PaymentSelection.Provider,
				PaymentRef:  ref,
				TotalCents:  session.TotalCents,
				Currency:    session.Currency,
				ConfirmedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) Complete(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == enums.SessionStatusCompleted {
		return nil
	}
	if err := guardTransition(session.Status, enums.SessionStatusCompleted); err != nil {
		return err
	}

	now := time.Now().UTC()
	session.Status = enums.SessionStatusCompleted
	session.CompletedAt = &now

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, session); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionCompleted,
			AggregateType: enums.AggregateCheckoutSession,
			AggregateID:   session.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerID: session.CustomerID},
			Data: payloads.SessionCompletedEvent{
				SessionID:   session.ID,
				CartID:      session.CartID,
				CustomerID:  session.CustomerID,
				CompletedAt: now,
			},
		})
	})
	if err != nil {
		return err
	}

	if err := s.carts.MarkConsumed(ctx, session.CartID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithCartID(ctx, session.CartID.String()), "mark cart consumed", err)
	}
	return nil
}

func (s *service) Abandon(ctx context.Context, sessionID, customerID uuid.UUID) error {
	session, err := s.loadOwnedSession(ctx, sessionID, customerID)
	if err != nil {
		return err
	}
	if session.Status == enums.SessionStatusAbandoned {
		return nil
	}
	if err := guardTransition(session.Status, enums.SessionStatusAbandoned); err != nil {
		return err
	}

	now := time.Now().UTC()
	session.Status = enums.SessionStatusAbandoned

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, session); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionAbandoned,
			AggregateType: enums.AggregateCheckoutSession,
			AggregateID:   session.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerID: session.CustomerID},
			Data: payloads.SessionAbandonedEvent{
				SessionID:   session.ID,
				CartID:      session.CartID,
				CustomerID:  session.CustomerID,
				AbandonedAt: now,
			},
		})
	})
}

func (s *service) Expire(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == enums.SessionStatusExpired {
		return nil
	}
	if err := guardTransition(session.Status, enums.SessionStatusExpired); err != nil {
		return err
	}

	now := time.Now().UTC()
	session.Status = enums.SessionStatusExpired

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, session); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionExpired,
			AggregateType: enums.AggregateCheckoutSession,
			AggregateID:   session.ID,
			Version:       1,
			Data: payloads.SessionExpiredEvent{
				SessionID:  session.ID,
				CartID:     session.CartID,
				CustomerID: session.CustomerID,
				ExpiredAt:  now,
			},
		})
	})
}

// ExpireDue sweeps sessions whose deadline passed. A conflict on one session
// means a competing writer got there first; the sweep moves on.
func (s *service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.FindExpired(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired sessions")
	}

	expired := 0
	var errs error
	for _, session := range due {
		if err := s.Expire(ctx, session.ID); err != nil {
			if pkgerrors.CodeOf(err) == pkgerrors.CodeConflict || pkgerrors.CodeOf(err) == pkgerrors.CodeStateConflict {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire session %s: %w", session.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) ListHistory(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*SessionList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	list, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list checkout history")
	}
	return list, nil
}

func (s *service) saveSession(ctx context.Context, session *models.CheckoutSession) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Save(ctx, session)
	})
}

func (s *service) loadSession(ctx context.Context, sessionID uuid.UUID) (*models.CheckoutSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	return session, nil
}

func (s *service) loadOwnedSession(ctx context.Context, sessionID, customerID uuid.UUID) (*models.CheckoutSession, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CustomerID != customerID {
		// Cross-customer probes read the same as a missing session.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	return session, nil
}
