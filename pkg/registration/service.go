package registration

import (
	"context"
	"errors"
	"fmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"strings"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrBulkImport     = errors.New("bulk import aborted")
)

type Service struct {
	repo   *Repository
	logger *zap.Logger
	tracer trace.Tracer
}

func NewService(repo *Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, tracer: otel.Tracer("registration")}
}

// Register stores one inscription coming from the public form and returns its id.
func (s *Service) Register(ctx context.Context, p Player) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Service.Register")
	defer span.End()

	id, err := s.repo.Insert(ctx, prepare(p))
	if err != nil {
		recordErr(span, err)
		return 0, fmt.Errorf("Register failed: %w", err)
	}

	span.SetAttributes(attribute.Int64("player.id", id))
	s.logger.Info("Player registered", zap.Int64("id", id), zap.String("fullName", p.FullName),
		zap.String("team", p.TeamName))

	return id, nil
}

// BulkImport inserts the players one by one in input order. There is no enclosing transaction: when
// record k fails, records before k stay committed, the rest are skipped and ErrBulkImport is returned
// together with the number already stored.
func (s *Service) BulkImport(ctx context.Context, players []Player) (int, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Service.BulkImport",
		trace.WithAttributes(attribute.Int("players.count", len(players))))
	defer span.End()

	s.logger.Info("Bulk import received", zap.Int("players", len(players)))

	for i, p := range players {
		if _, err := s.repo.Insert(ctx, prepare(p)); err != nil {
			recordErr(span, err)
			s.logger.Error("Bulk import stopped", zap.Int("committed", i), zap.Int("failedRecord", i+1),
				zap.Error(err))
			return i, fmt.Errorf("%w: record %d of %d, %d already stored: %w", ErrBulkImport, i+1,
				len(players), i, err)
		}
	}

	return len(players), nil
}

// List returns the players newest first, narrowed by the filter when it is not empty.
func (s *Service) List(ctx context.Context, f Filter) ([]Player, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Service.List")
	defer span.End()

	players, err := s.repo.List(ctx)
	if err != nil {
		recordErr(span, err)
		return nil, fmt.Errorf("List failed: %w", err)
	}

	return f.Apply(players), nil
}

// Delete is a hard delete. Deleting an id that does not exist is not an error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "registration.Service.Delete",
		trace.WithAttributes(attribute.Int64("player.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		recordErr(span, err)
		return fmt.Errorf("Delete failed: %w", err)
	}

	s.logger.Info("Player deleted", zap.Int64("id", id))
	return nil
}

// prepare applies the defaults shared by the form and the bulk import.
func prepare(p Player) Player {
	p.PlayerType = strings.TrimSpace(p.PlayerType)
	if p.PlayerType == "" {
		p.PlayerType = PLAYER_TYPE_SOCIO
	}

	p.SocioName = emptyToNil(p.SocioName)
	p.SocioDni = emptyToNil(p.SocioDni)
	p.SocioPhone = emptyToNil(p.SocioPhone)
	p.DniPlayerPath = emptyToNil(p.DniPlayerPath)
	p.DniSocioPath = emptyToNil(p.DniSocioPath)

	return p
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
