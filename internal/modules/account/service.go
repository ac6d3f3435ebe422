package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type StatusStore interface {
	SetDisabled(ctx context.Context, id int64, disabled bool) error
	MarkDeleted(ctx context.Context, id int64) error
}

type SessionRevoker interface {
	RevokeAllForSubject(ctx context.Context, subjectID int64) (int64, error)
}

// Service applies account status changes and ends the subject's sessions
// when the account can no longer authenticate.
type Service struct {
	store    StatusStore
	sessions SessionRevoker
	log      *zap.Logger
}

func NewService(store StatusStore, sessions SessionRevoker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, sessions: sessions, log: log}
}

func (s *Service) Disable(ctx context.Context, subjectID int64) (int64, error) {
	if err := s.store.SetDisabled(ctx, subjectID, true); err != nil {
		return 0, fmt.Errorf("disable account %d: %w", subjectID, err)
	}
	return s.endSessions(ctx, subjectID, "disabled")
}

func (s *Service) Enable(ctx context.Context, subjectID int64) error {
	if err := s.store.SetDisabled(ctx, subjectID, false); err != nil {
		return fmt.Errorf("enable account %d: %w", subjectID, err)
	}
	s.log.Info("account enabled", zap.Int64("subject_id", subjectID))
	return nil
}

func (s *Service) Delete(ctx context.Context, subjectID int64) (int64, error) {
	if err := s.store.MarkDeleted(ctx, subjectID); err != nil {
		return 0, fmt.Errorf("delete account %d: %w", subjectID, err)
	}
	return s.endSessions(ctx, subjectID, "deleted")
}

func (s *Service) endSessions(ctx context.Context, subjectID int64, reason string) (int64, error) {
	n, err := s.sessions.RevokeAllForSubject(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for %d: %w", subjectID, err)
	}
	s.log.Info("account "+reason,
		zap.Int64("subject_id", subjectID),
		zap.Int64("revoked_tokens", n))
	return n, nil
}
