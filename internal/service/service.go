package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/repository"
)

// TxRunner runs fn in a single database transaction.
// *repository.TxManager implements it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ActivityRecorder appends operator audit entries.
type ActivityRecorder interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

type customerGetter interface {
	GetByID(ctx context.Context, id string) (*models.Customer, error)
}

// Clock is overridable in tests.
type Clock func() time.Time

func recordActivity(ctx context.Context, rec ActivityRecorder, meta models.RequestMeta, action, targetType, targetID, description string) error {
	if meta.UserID == "" {
		// system actions (CLI sweeps) have no operator to attribute
		return nil
	}
	return rec.Create(ctx, &models.ActivityLog{
		UserID:      meta.UserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Description: description,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
}

// notFound turns repository.ErrNotFound into a client error and passes
// everything else through.
func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(message)
	}
	return err
}
