// Package notificationtest provides a testify mock of the dispatcher.
package notificationtest

import (
	"context"

	"github.com/smallbiznis/carebridge/internal/notification/domain"
	"github.com/stretchr/testify/mock"
)

type Dispatcher struct {
	mock.Mock
}

func (m *Dispatcher) Schedule(ctx context.Context, kind domain.Kind, payload domain.Payload) (string, error) {
	args := m.Called(ctx, kind, payload)
	return args.String(0), args.Error(1)
}

// NewAccepting returns a mock that schedules every notification.
func NewAccepting() *Dispatcher {
	m := &Dispatcher{}
	m.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return("job-1", nil)
	return m
}

// Payloads returns the payloads scheduled for kind, in call order.
func (m *Dispatcher) Payloads(kind domain.Kind) []domain.Payload {
	var out []domain.Payload
	for _, call := range m.Calls {
		if call.Method != "Schedule" {
			continue
		}
		if k, ok := call.Arguments.Get(1).(domain.Kind); ok && k == kind {
			out = append(out, call.Arguments.Get(2).(domain.Payload))
		}
	}
	return out
}
