package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// PublisherMock stands in for the AMQP audit publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// RoutingKeys lists the routing keys passed to Publish, in call order.
func (m *PublisherMock) RoutingKeys() []string {
	var keys []string
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			keys = append(keys, call.Arguments.String(1))
		}
	}
	return keys
}
