package messaging

import (
	"context"
)

// Consume subscribes to channel and calls handler for every payload until
// ctx is done or the broker closes the subscription. Handler errors are
// passed to onError and do not stop consumption.
func Consume(ctx context.Context, broker Broker, channel string, handler func([]byte) error, onError func(error)) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgChan:
			if !ok {
				return ctx.Err()
			}
			if err := handler(msg); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
