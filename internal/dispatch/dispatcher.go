// Package dispatch delivers rendered notifications through the messaging
// session with bounded retries.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"sales-collector/internal/config"
	"sales-collector/internal/domain"
	"sales-collector/internal/ports"
	"sales-collector/internal/retry"
)

// Dispatcher sends one notification at a time per call. Calls may run
// concurrently; they share the session.
type Dispatcher struct {
	session     ports.MessagingSession
	policy      config.DispatchPolicy
	countryCode string
	logger      *slog.Logger
}

var _ ports.Notifier = (*Dispatcher)(nil)

// New creates a Dispatcher.
func New(session ports.MessagingSession, policy config.DispatchPolicy, countryCode string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		session:     session,
		policy:      policy,
		countryCode: countryCode,
		logger:      logger,
	}
}

// Send delivers text to destination. With images, each image is its own
// message and only the last one carries text as caption.
func (d *Dispatcher) Send(ctx context.Context, destination, text string, images []string) (*domain.Receipt, error) {
	to, err := NormalizeDestination(destination, d.countryCode)
	if err != nil {
		return nil, err
	}

	decoded, err := DecodeImages(images)
	if err != nil {
		return nil, err
	}

	logger := d.logger.With("to", to, "images", len(decoded))

	var ids []string
	policy := retry.Policy{
		MaxAttempts: d.policy.MaxAttempts,
		Delay:       retry.Fixed(d.policy.RetryDelay.ToDuration()),
		OnRetry: func(attempt int, err error) {
			logger.Warn("send attempt failed",
				"attempt", attempt,
				"max_attempts", d.policy.MaxAttempts,
				"error", err,
			)
			if !domain.IsConnectionError(err) {
				return
			}
			// A concurrent send may have restarted the session already.
			if d.session.IsConnecting() {
				logger.Info("connection issue detected, reconnect already in progress")
				return
			}
			logger.Info("connection issue detected, forcing reconnect")
			d.session.Reconnect(ctx)
		},
	}

	attempts, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		logger.Debug("sending notification", "attempt", attempt)
		if err := d.ensureOpen(ctx); err != nil {
			return err
		}
		var sendErr error
		ids, sendErr = d.deliver(ctx, to, text, decoded)
		return sendErr
	})
	if err != nil {
		logger.Error("notification failed", "attempts", attempts, "error", err)
		return nil, &domain.DispatchError{Destination: to, Attempts: attempts, Err: err}
	}

	logger.Info("notification sent", "attempts", attempts, "messages", len(ids))

	return &domain.Receipt{
		Destination: to,
		MessageIDs:  ids,
		Attempts:    attempts,
	}, nil
}

// ensureOpen asks for a connection when needed and waits for it to settle.
func (d *Dispatcher) ensureOpen(ctx context.Context) error {
	if d.session.IsOpen() {
		return nil
	}

	d.logger.Info("not connected, attempting to connect")
	if !d.session.Connect(ctx, false) && !d.session.IsConnecting() {
		return &domain.SessionError{Op: "connect", Err: domain.ErrNotConnected}
	}

	settle := d.policy.SettleDelay.ToDuration()
	if err := retry.Sleep(ctx, settle); err != nil {
		return err
	}

	if !d.session.IsOpen() {
		return &domain.SessionError{
			Op:  "connect",
			Err: fmt.Errorf("still not connected after %s: %w", settle, domain.ErrNotConnected),
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, to, text string, images []ports.Image) ([]string, error) {
	if len(images) == 0 {
		id, err := d.session.SendText(ctx, to, text)
		if err != nil {
			return nil, fmt.Errorf("send text: %w", err)
		}
		return []string{id}, nil
	}

	ids := make([]string, 0, len(images))
	for i, img := range images {
		last := i == len(images)-1
		if last {
			img.Caption = text
		}

		id, err := d.sendImage(ctx, to, img, i+1)
		if err != nil {
			return ids, fmt.Errorf("image %d of %d: %w", i+1, len(images), err)
		}
		ids = append(ids, id)

		if !last {
			if err := retry.Sleep(ctx, d.policy.ImageGap.ToDuration()); err != nil {
				return ids, err
			}
		}
	}
	return ids, nil
}

// sendImage retries one image. A broken connection is handed straight back
// so the outer loop can rebuild the session.
func (d *Dispatcher) sendImage(ctx context.Context, to string, img ports.Image, index int) (string, error) {
	var id string
	policy := retry.Policy{
		MaxAttempts: d.policy.ImageAttempts,
		Delay:       retry.Fixed(d.policy.ImageRetryDelay.ToDuration()),
		OnRetry: func(attempt int, err error) {
			d.logger.Warn("retrying image send", "image", index, "attempt", attempt, "error", err)
		},
	}

	_, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		var sendErr error
		id, sendErr = d.session.SendImage(ctx, to, img)
		if sendErr != nil && domain.IsConnectionError(sendErr) {
			return retry.Permanent(sendErr)
		}
		return sendErr
	})
	return id, err
}
