package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
)

type MockInferrer struct {
	mock.Mock
}

func (m *MockInferrer) Infer(ctx context.Context, text string, reference calendar.Date) (*deadline.Result, error) {
	args := m.Called(ctx, text, reference)
	r, _ := args.Get(0).(*deadline.Result)
	return r, args.Error(1)
}

func (m *MockInferrer) Provider() string { return "Gemini" }

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishExtraction(ctx context.Context, event *ExtractionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, name string, content []byte) (string, error) {
	args := m.Called(ctx, name, content)
	return args.String(0), args.Error(1)
}

type recordedObservation struct {
	method string
	rule   string
}

type fakeMetrics struct {
	mu   sync.Mutex
	seen []recordedObservation
}

func (f *fakeMetrics) ObserveExtraction(method, rule string, _ time.Duration) {
	f.mu.Lock()
	f.seen = append(f.seen, recordedObservation{method: method, rule: rule})
	f.mu.Unlock()
}
