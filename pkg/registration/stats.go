package registration

import (
	"context"
	"fmt"
	"github.com/sourcegraph/conc/pool"
)

// Stats runs the three aggregate queries at the same time and returns them together. If any of them
// fails the others are cancelled and no partial snapshot is returned.
func (s *Service) Stats(ctx context.Context) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Service.Stats")
	defer span.End()

	var (
		byTeam     []TeamCount
		byCategory []CategoryCount
		total      int64
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		var err error
		byTeam, err = s.repo.CountByTeam(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		byCategory, err = s.repo.CountByCategory(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		total, err = s.repo.CountTotal(ctx)
		return err
	})

	if err := p.Wait(); err != nil {
		recordErr(span, err)
		return Snapshot{}, fmt.Errorf("Stats failed: %w", err)
	}

	return Snapshot{Total: total, ByTeam: byTeam, ByCategory: byCategory}, nil
}
