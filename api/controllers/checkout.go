package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storefrontlab/storefront-backend/api/responses"
	"github.com/storefrontlab/storefront-backend/api/validators"
	"github.com/storefrontlab/storefront-backend/internal/carts"
	"github.com/storefrontlab/storefront-backend/internal/checkout"
	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/pagination"
	"github.com/storefrontlab/storefront-backend/pkg/types"
)

// CheckoutStart opens a session for the customer's cart. When the body omits
// cart_id the customer's open cart is used.
func CheckoutStart(svc checkout.Service, cartSvc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload startCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cartID := payload.CartID
		if cartID == uuid.Nil {
			if cartSvc == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart_id required"))
				return
			}
			cart, cartErr := cartSvc.GetOrCreateOpenCart(r.Context(), customerID)
			if cartErr != nil {
				responses.WriteError(r.Context(), logg, w, cartErr)
				return
			}
			cartID = cart.ID
		}

		session, err := svc.StartCheckout(r.Context(), checkout.StartCheckoutInput{
			CartID:     cartID,
			CustomerID: customerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(session))
	}
}

// CheckoutSession returns the customer's active session.
func CheckoutSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.GetActiveSession(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSessionResponse(session))
	}
}

// CheckoutStepAccess reports whether the customer may open a step page and
// where to send them otherwise.
func CheckoutStepAccess(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		step, err := enums.ParseCheckoutStep(chi.URLParam(r, "step"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout step"))
			return
		}

		session, err := svc.GetActiveSession(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := svc.CanAccessStep(r.Context(), session.ID, customerID, step)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStepAccessResponse(step, decision))
	}
}

// CheckoutBuyerInfo records the buyer info step.
func CheckoutBuyerInfo(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload buyerInfoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := resolveSessionID(r, svc, payload.SessionID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var phone *string
		if payload.Phone != nil {
			trimmed := validators.SanitizeString(*payload.Phone, 32)
			if trimmed != "" {
				phone = &trimmed
			}
		}

		session, err := svc.SubmitBuyerInfo(r.Context(), checkout.SubmitBuyerInfoInput{
			SessionID:  sessionID,
			CustomerID: customerID,
			Info: types.BuyerInfo{
				FullName: validators.SanitizeString(payload.FullName, 200),
				Email:    validators.SanitizeString(payload.Email, 254),
				Phone:    phone,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSessionResponse(session))
	}
}

// CheckoutDelivery records the delivery step.
func CheckoutDelivery(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deliveryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := resolveSessionID(r, svc, payload.SessionID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.SubmitDelivery(r.Context(), checkout.SubmitDeliveryInput{
			SessionID:  sessionID,
			CustomerID: customerID,
			Address:    payload.Address,
			Shipping: types.ShippingOption{
				Code:          payload.Shipping.Code,
				Title:         payload.Shipping.Title,
				PriceCents:    payload.Shipping.PriceCents,
				EstimatedDays: payload.Shipping.EstimatedDays,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSessionResponse(session))
	}
}

// CheckoutPayment records the payment method selection. No charge happens
// until confirm.
func CheckoutPayment(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentSelectionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := enums.ParsePaymentProviderID(payload.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment provider"))
			return
		}

		sessionID, err := resolveSessionID(r, svc, payload.SessionID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.SubmitPaymentSelection(r.Context(), checkout.SubmitPaymentSelectionInput{
			SessionID:  sessionID,
			CustomerID: customerID,
			Selection: types.PaymentSelection{
				Provider:    provider,
				SourceToken: payload.SourceToken,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSessionResponse(session))
	}
}

// CheckoutConfirm authorizes payment and moves the session to confirmed.
func CheckoutConfirm(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sessionRefRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := resolveSessionID(r, svc, payload.SessionID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Confirm(r.Context(), checkout.ConfirmInput{
			SessionID:  sessionID,
			CustomerID: customerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSessionResponse(session))
	}
}

// CheckoutCancel abandons the session and reopens its cart.
func CheckoutCancel(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sessionRefRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := resolveSessionID(r, svc, payload.SessionID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Abandon(r.Context(), sessionID, customerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "abandoned"})
	}
}

// CheckoutHistory lists the customer's confirmed and completed sessions.
func CheckoutHistory(svc checkout.Service, cfg config.CheckoutConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", cfg.HistoryPageSize, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListHistory(r.Context(), customerID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSessionListResponse(list))
	}
}

// resolveSessionID prefers an explicit session id from the body and falls
// back to the customer's active session.
func resolveSessionID(r *http.Request, svc checkout.Service, explicit *uuid.UUID, customerID uuid.UUID) (uuid.UUID, error) {
	if explicit != nil && *explicit != uuid.Nil {
		return *explicit, nil
	}
	session, err := svc.GetActiveSession(r.Context(), customerID)
	if err != nil {
		return uuid.Nil, err
	}
	return session.ID, nil
}

type startCheckoutRequest struct {
	CartID uuid.UUID `json:"cart_id"`
}

type sessionRefRequest struct {
	SessionID *uuid.UUID `json:"session_id"`
}

type buyerInfoRequest struct {
	SessionID *uuid.UUID `json:"session_id"`
	FullName  string     `json:"full_name" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     *string    `json:"phone"`
}

type deliveryRequest struct {
	SessionID *uuid.UUID            `json:"session_id"`
	Address   types.Address         `json:"address" validate:"required"`
	Shipping  shippingOptionPayload `json:"shipping_option" validate:"required"`
}

type shippingOptionPayload struct {
	Code          string `json:"code" validate:"required"`
	Title         string `json:"title" validate:"required"`
	PriceCents    int    `json:"price_cents" validate:"min=0"`
	EstimatedDays *int   `json:"estimated_days"`
}

type paymentSelectionRequest struct {
	SessionID   *uuid.UUID `json:"session_id"`
	Provider    string     `json:"provider" validate:"required"`
	SourceToken string     `json:"source_token" validate:"required"`
}

type sessionResponse struct {
	ID               uuid.UUID             `json:"id"`
	CartID           uuid.UUID             `json:"cart_id"`
	Status           string                `json:"status"`
	CurrentStep      string                `json:"current_step"`
	CompletedSteps   []string              `json:"completed_steps"`
	BuyerInfo        *types.BuyerInfo      `json:"buyer_info,omitempty"`
	DeliveryAddress  *types.Address        `json:"delivery_address,omitempty"`
	ShippingOption   *types.ShippingOption `json:"shipping_option,omitempty"`
	PaymentSelection *paymentSelectionView `json:"payment_selection,omitempty"`
	Items            []sessionItemResponse `json:"items"`
	Currency         string                `json:"currency"`
	Subtotal         string                `json:"subtotal"`
	Shipping         string                `json:"shipping"`
	Total            string                `json:"total"`
	ExpiresAt        time.Time             `json:"expires_at"`
	ConfirmedAt      *time.Time            `json:"confirmed_at,omitempty"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// paymentSelectionView hides the raw source token from responses.
type paymentSelectionView struct {
	Provider string `json:"provider"`
}

type sessionItemResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	LineTotal   string    `json:"line_total"`
}

type stepAccessResponse struct {
	Step       string `json:"step"`
	Allowed    bool   `json:"allowed"`
	RedirectTo string `json:"redirect_to,omitempty"`
	ToCart     bool   `json:"to_cart,omitempty"`
}

type sessionListResponse struct {
	Sessions   []sessionResponse `json:"sessions"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func newSessionResponse(session *models.CheckoutSession) sessionResponse {
	resp := sessionResponse{
		ID:              session.ID,
		CartID:          session.CartID,
		Status:          string(session.Status),
		CurrentStep:     string(session.CurrentStep),
		CompletedSteps:  append([]string{}, session.CompletedSteps...),
		BuyerInfo:       session.BuyerInfo,
		DeliveryAddress: session.DeliveryAddress,
		ShippingOption:  session.ShippingOption,
		Items:           make([]sessionItemResponse, 0, len(session.Items)),
		Currency:        string(session.Currency),
		Subtotal:        formatCents(session.SubtotalCents),
		Shipping:        formatCents(session.ShippingCents),
		Total:           formatCents(session.TotalCents),
		ExpiresAt:       session.ExpiresAt,
		ConfirmedAt:     session.ConfirmedAt,
		CompletedAt:     session.CompletedAt,
		CreatedAt:       session.CreatedAt,
	}

	if session.PaymentSelection != nil {
		resp.PaymentSelection = &paymentSelectionView{Provider: string(session.PaymentSelection.Provider)}
	}

	for _, item := range session.Items {
		resp.Items = append(resp.Items, sessionItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   formatCents(item.UnitPriceCents),
			LineTotal:   formatCents(item.LineTotalCents()),
		})
	}

	return resp
}

func newStepAccessResponse(step enums.CheckoutStep, decision checkout.AccessDecision) stepAccessResponse {
	resp := stepAccessResponse{
		Step:    string(step),
		Allowed: decision.Allowed,
		ToCart:  decision.ToCart,
	}
	if decision.RedirectTo != "" {
		resp.RedirectTo = string(decision.RedirectTo)
	}
	return resp
}

func newSessionListResponse(list *checkout.SessionList) sessionListResponse {
	resp := sessionListResponse{
		Sessions:   make([]sessionResponse, 0, len(list.Sessions)),
		NextCursor: list.NextCursor,
	}
	for i := range list.Sessions {
		resp.Sessions = append(resp.Sessions, newSessionResponse(&list.Sessions[i]))
	}
	return resp
}
