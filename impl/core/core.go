package core

import (
	"context"
	"fmt"
	"log/slog"

	"keycards/entity"
	"keycards/internal/keycard"
	"keycards/lib/sl"
)

// Core glues the redemption service to the HTTP front door. Handler
// packages declare the slice of this surface they need.
type Core struct {
	svc        *keycard.Service
	adminToken string
	log        *slog.Logger
}

func New(svc *keycard.Service, adminToken string, log *slog.Logger) Core {
	if svc == nil {
		panic("keycard service is nil")
	}
	return Core{
		svc:        svc,
		adminToken: adminToken,
		log:        log.With(sl.Module("core")),
	}
}

// CheckAdminToken guards the batch-management surface. An empty
// configured token disables that surface entirely rather than leaving
// it open.
func (c Core) CheckAdminToken(token string) error {
	if c.adminToken == "" {
		return fmt.Errorf("admin surface not enabled")
	}
	if token != c.adminToken {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func (c Core) Activate(ctx context.Context, code, credential, ownerRef string) (*entity.AcquisitionResult, error) {
	return c.svc.Activate(ctx, code, credential, ownerRef)
}

func (c Core) CreateBatch(ctx context.Context, name string, count int) (*entity.Batch, error) {
	return c.svc.CreateBatch(ctx, name, count)
}

func (c Core) Batches(ctx context.Context) ([]*entity.Batch, error) {
	return c.svc.Batches(ctx)
}

func (c Core) KeyCardsByBatch(ctx context.Context, batchId string) ([]*entity.KeyCard, error) {
	return c.svc.KeyCardsByBatch(ctx, batchId)
}

func (c Core) KeyCardsByStatus(ctx context.Context, status entity.KeyCardStatus) ([]*entity.KeyCard, error) {
	return c.svc.KeyCardsByStatus(ctx, status)
}

func (c Core) KeyCardInfo(ctx context.Context, code string) (*entity.KeyCard, error) {
	return c.svc.KeyCardInfo(ctx, code)
}
