package observability

import "context"

// Publisher is the telemetry event bus seam; the AMQP implementation lives
// in internal/rabbitmq.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent forwards a telemetry event to the configured bus. With no
// publisher configured it is a no-op.
func PublishEvent(ctx context.Context, routingKey string, message any) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, message)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
