// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/templates/lms-backend/internal/core"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetMe returns the caller's account. Soft-deleted accounts are reported
// as missing.
func (s *Service) GetMe(ctx context.Context, id string) (*Account, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsDeleted {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	return a, nil
}

func (s *Service) DeleteMe(ctx context.Context, id string) error {
	if _, err := s.GetMe(ctx, id); err != nil {
		return err
	}

	if _, err := s.store.Update(ctx, id, Update{IsDeleted: Ptr(true)}); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]Account, int, error) {
	return s.store.List(ctx, params)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}
