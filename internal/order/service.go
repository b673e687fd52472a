package order

import (
	"context"
	"fmt"

	"chapchap-pay/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	GetOrder(ctx context.Context, orderID uint) (*Order, error)
	FindByReference(ctx context.Context, ref string) (*Order, error)

	MarkAsPaid(ctx context.Context, orderID uint, operationID, paymentMethod string) error
	MarkAsFailed(ctx context.Context, orderID uint) error
	MarkAsCancelled(ctx context.Context, orderID uint) error
	MarkAsPending(ctx context.Context, orderID uint, operationID string) error

	HoldForReview(ctx context.Context, orderID uint, reason string) error
	RecordUnknownStatus(ctx context.Context, orderID uint, code string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *service) FindByReference(ctx context.Context, ref string) (*Order, error) {
	return s.repo.GetByExternalReference(ctx, ref)
}

func (s *service) MarkAsPaid(ctx context.Context, orderID uint, operationID, paymentMethod string) error {
	meta := PaymentMeta{
		OperationID:   operationID,
		PaymentMethod: paymentMethod,
		LastStatus:    "success",
	}
	note := fmt.Sprintf("Paiement ChapChapPay réussi. Méthode: %s, Operation: %s", paymentMethod, operationID)

	return s.applyTerminal(ctx, orderID, StatusPaid, meta, note)
}

func (s *service) MarkAsFailed(ctx context.Context, orderID uint) error {
	meta := PaymentMeta{LastStatus: "failed"}
	return s.applyTerminal(ctx, orderID, StatusFailed, meta, "Paiement ChapChapPay échoué.")
}

func (s *service) MarkAsCancelled(ctx context.Context, orderID uint) error {
	meta := PaymentMeta{LastStatus: "canceled"}
	return s.applyTerminal(ctx, orderID, StatusCancelled, meta, "Paiement ChapChapPay annulé.")
}

// applyTerminal moves the order into a terminal status. Re-delivery of the
// same terminal status is a no-op; a different terminal status is recorded
// for manual review instead of being applied.
func (s *service) applyTerminal(ctx context.Context, orderID uint, to Status, meta PaymentMeta, note string) error {
	log := logger.FromCtx(ctx).With(zap.Uint("order_id", orderID), zap.String("status", string(to)))

	applied, err := s.repo.UpdateStatusIfNotTerminal(ctx, orderID, to, meta)
	if err != nil {
		return err
	}

	if applied {
		if err := s.repo.AddNote(ctx, orderID, note); err != nil {
			log.Warn("failed to append order note", zap.Error(err))
		}
		log.Info("order status updated")
		return nil
	}

	current, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if current.Status == to {
		log.Info("re-notification of terminal status ignored")
		return nil
	}

	conflictNote := fmt.Sprintf(
		"Notification ChapChapPay en conflit: statut %s reçu alors que la commande est %s. Vérification manuelle requise.",
		to, current.Status,
	)
	if err := s.repo.AddNote(ctx, orderID, conflictNote); err != nil {
		log.Warn("failed to append conflict note", zap.Error(err))
	}

	log.Error("conflicting terminal notification",
		zap.String("current_status", string(current.Status)),
	)
	return ErrStatusConflict
}

func (s *service) MarkAsPending(ctx context.Context, orderID uint, operationID string) error {
	log := logger.FromCtx(ctx).With(zap.Uint("order_id", orderID))

	meta := PaymentMeta{OperationID: operationID, LastStatus: "pending"}
	applied, err := s.repo.UpdateStatusIfNotTerminal(ctx, orderID, StatusPending, meta)
	if err != nil {
		return err
	}

	if !applied {
		// A pending notification arriving after a terminal status is stale.
		note := "Notification ChapChapPay 'pending' ignorée: la commande a déjà un statut final."
		if err := s.repo.AddNote(ctx, orderID, note); err != nil {
			log.Warn("failed to append order note", zap.Error(err))
		}
		log.Info("stale pending notification ignored")
		return nil
	}

	note := fmt.Sprintf("Paiement ChapChapPay en attente. Operation: %s", operationID)
	if err := s.repo.AddNote(ctx, orderID, note); err != nil {
		log.Warn("failed to append order note", zap.Error(err))
	}
	return nil
}

func (s *service) HoldForReview(ctx context.Context, orderID uint, reason string) error {
	log := logger.FromCtx(ctx).With(zap.Uint("order_id", orderID))

	applied, err := s.repo.UpdateStatusIfNotTerminal(ctx, orderID, StatusOnHold, PaymentMeta{})
	if err != nil {
		return err
	}

	if err := s.repo.AddNote(ctx, orderID, reason); err != nil {
		log.Warn("failed to append order note", zap.Error(err))
	}

	if !applied {
		log.Warn("hold requested on terminal order, note recorded only")
		return nil
	}

	log.Warn("order placed on hold", zap.String("reason", reason))
	return nil
}

func (s *service) RecordUnknownStatus(ctx context.Context, orderID uint, code string) error {
	note := fmt.Sprintf("Statut ChapChapPay non traité: %s", code)
	if err := s.repo.AddNote(ctx, orderID, note); err != nil {
		return err
	}

	logger.FromCtx(ctx).Warn("unrecognized payment status code",
		zap.Uint("order_id", orderID),
		zap.String("code", code),
	)
	return nil
}
