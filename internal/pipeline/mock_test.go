package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/metria/report-cli/internal/compile"
	"github.com/metria/report-cli/internal/deliver"
	"github.com/metria/report-cli/internal/ingest"
	"github.com/metria/report-cli/internal/model"
)

// --- Ingestor Mock ---

type mockIngestor struct {
	mock.Mock
}

func (m *mockIngestor) Ingest(ctx context.Context, client *model.Client, period time.Time) (ingest.Result, error) {
	args := m.Called(ctx, client, period)
	return args.Get(0).(ingest.Result), args.Error(1)
}

// --- Processor Mock ---

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, clientID string, period time.Time) (*model.ProcessedMetrics, error) {
	args := m.Called(ctx, clientID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcessedMetrics), args.Error(1)
}

// --- Analyzer Mock ---

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, processed *model.ProcessedMetrics) (string, error) {
	args := m.Called(ctx, processed)
	return args.String(0), args.Error(1)
}

// --- Compiler Mock ---

type mockCompiler struct {
	mock.Mock
}

func (m *mockCompiler) Compile(req compile.Request) ([]byte, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- Artifact Store Mock ---

type mockArtifactStore struct {
	mock.Mock
}

func (m *mockArtifactStore) Save(ctx context.Context, clientID string, period time.Time, pdf []byte) (string, error) {
	args := m.Called(ctx, clientID, period, pdf)
	return args.String(0), args.Error(1)
}

// --- Deliverer Mock ---

type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) Deliver(ctx context.Context, req deliver.Request) (deliver.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(deliver.Result), args.Error(1)
}
