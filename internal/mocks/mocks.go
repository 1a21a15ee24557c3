package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type EmitterMock struct {
	mock.Mock
}

func (m *EmitterMock) Emit(ctx context.Context, roomID, event string, payload any) error {
	args := m.Called(ctx, roomID, event, payload)
	return args.Error(0)
}

// Events lists the event names emitted so far, in call order.
func (m *EmitterMock) Events() []string {
	var events []string
	for _, call := range m.Calls {
		if call.Method == "Emit" {
			events = append(events, call.Arguments.String(2))
		}
	}
	return events
}

var _ interface {
	Emit(context.Context, string, string, any) error
} = (*EmitterMock)(nil)
