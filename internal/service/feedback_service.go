package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/pkg/metrics"
)

var ErrDeadLetterNotFound = errors.New("no pending dead letter with that id")

type FeedbackRepository interface {
	ListDeadLetters(ctx context.Context, includeAcknowledged bool) ([]models.DeadLetter, error)
	AcknowledgeDeadLetter(ctx context.Context, id string) (bool, error)
	CountDeadLetters(ctx context.Context) (int, error)
}

// FeedbackService surfaces mutations the server rejected for good, so the
// operator learns about bookings that never reached the server
type FeedbackService struct {
	repo   FeedbackRepository
	logger *slog.Logger
}

func NewFeedbackService(r FeedbackRepository, l *slog.Logger) *FeedbackService {
	return &FeedbackService{repo: r, logger: l}
}

// Pending lists dropped mutations nobody acknowledged yet, newest first
func (s *FeedbackService) Pending(ctx context.Context) ([]models.DeadLetter, error) {
	letters, err := s.repo.ListDeadLetters(ctx, false)
	if err != nil {
		return nil, err
	}
	metrics.DeadLetters.Set(float64(len(letters)))
	return letters, nil
}

// History lists every dropped mutation, acknowledged or not
func (s *FeedbackService) History(ctx context.Context) ([]models.DeadLetter, error) {
	return s.repo.ListDeadLetters(ctx, true)
}

func (s *FeedbackService) Acknowledge(ctx context.Context, id string) error {
	ok, err := s.repo.AcknowledgeDeadLetter(ctx, id)
	if err != nil {
		s.logger.Error("Feedback: failed to acknowledge dead letter", "dead_letter_id", id, "error", err)
		return err
	}
	if !ok {
		return ErrDeadLetterNotFound
	}

	s.logger.Info("Feedback: dead letter acknowledged", "dead_letter_id", id)
	return s.Refresh(ctx)
}

// Refresh re-reads the pending count into the dead letter gauge
func (s *FeedbackService) Refresh(ctx context.Context) error {
	n, err := s.repo.CountDeadLetters(ctx)
	if err != nil {
		return err
	}
	metrics.DeadLetters.Set(float64(n))
	return nil
}
