package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/pagination"
)

// sessionColumns lists every mutable column Save writes. Keeping the list
// explicit means zero values (cleared payment_ref, zero totals) are persisted.
var sessionColumns = []string{
	"status",
	"current_step",
	"completed_steps",
	"buyer_info",
	"delivery_address",
	"shipping_option",
	"payment_selection",
	"payment_ref",
	"currency",
	"subtotal_cents",
	"shipping_cents",
	"total_cents",
	"version",
	"expires_at",
	"confirmed_at",
	"completed_at",
	"updated_at",
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout session repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("cart_id = ?", cartID).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindActiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("cart_id = ? AND status = ?", cartID, enums.SessionStatusActive).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindActiveByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("customer_id = ? AND status = ?", customerID, enums.SessionStatusActive).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutSession, error) {
	var sessions []models.CheckoutSession
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.SessionStatusActive, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// historyStatuses are the only statuses history surfaces. In-flight and
// discarded sessions never show up there.
var historyStatuses = []enums.SessionStatus{
	enums.SessionStatusConfirmed,
	enums.SessionStatusCompleted,
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*SessionList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	q := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Where("status IN ?", historyStatuses).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid history cursor")
	}
	if cursor != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var sessions []models.CheckoutSession
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}

	list := &SessionList{}
	if len(sessions) > limit {
		sessions = sessions[:limit]
		last := sessions[len(sessions)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	list.Sessions = sessions
	return list, nil
}

// Save persists the session guarded by an optimistic version check. The row is
// only written when the stored version still matches the version the caller
// read; a lost race surfaces as Conflict so the caller can reload and retry.
func (r *repository) Save(ctx context.Context, session *models.CheckoutSession) error {
	expected := session.Version
	session.Version = expected + 1

	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND version = ?", session.ID, expected).
		Select(sessionColumns).
		Updates(session)
	if res.Error != nil {
		session.Version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		session.Version = expected
		return pkgerrors.New(pkgerrors.CodeConflict, "session was modified concurrently")
	}
	return nil
}

// DeleteByID removes a session and its line items.
func (r *repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", id).
		Delete(&models.SessionLineItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.CheckoutSession{}).Error
}

func (r *repository) ReplaceLineItems(ctx context.Context, sessionID uuid.UUID, items []models.SessionLineItem) error {
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.SessionLineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}
