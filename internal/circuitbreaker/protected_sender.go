package circuitbreaker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

// Sender mirrors worker.Sender; worker imports this package.
type Sender interface {
	Send(ctx context.Context, msg *db.Message) error
	SupportsChannel(channel string) bool
}

// ProtectedSender puts a CircuitBreaker in front of a Sender.
type ProtectedSender struct {
	sender  Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

func NewProtectedSender(sender Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send fails fast with ErrCircuitOpen while the breaker is open. A
// cancelled context is not counted against the channel.
func (p *ProtectedSender) Send(ctx context.Context, msg *db.Message) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected reminder",
			zap.String("breaker", p.breaker.Name()),
			zap.String("subscription_id", msg.SubscriptionID.String()),
			zap.String("channel", msg.Channel),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.Name())
	}

	err := p.sender.Send(ctx, msg)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			p.breaker.ReleaseTrial()
			return err
		}
		p.breaker.RecordFailure()
		p.logger.Debug("circuit breaker recorded failure",
			zap.String("breaker", p.breaker.Name()),
			zap.Error(err),
		)
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

func (p *ProtectedSender) SupportsChannel(channel string) bool {
	return p.sender.SupportsChannel(channel)
}

// Breaker exposes the breaker for the health endpoint.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
