package analyze

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func sampleProcessed() *model.ProcessedMetrics {
	return &model.ProcessedMetrics{
		Period: "2025-07",
		GoogleAnalytics: &model.GoogleAnalyticsSection{
			GoogleAnalyticsData: model.GoogleAnalyticsData{Users: 320, Sessions: 410},
			Variation:           map[string]float64{"users": 12.5},
		},
	}
}

func TestAnalyze_ReturnsModelText(t *testing.T) {
	client := &mockAnthropicClient{}
	defer client.AssertExpectations(t)

	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" && req.MaxTokens == 800 && len(req.Messages) == 1
	})).Return(&anthropic.MessageResponse{Text: "  O mês teve crescimento de 12,5% em usuários.  "}, nil).Once()

	a := New(client, "claude-haiku-4-5-20251001", 2, time.Minute)
	text, err := a.Analyze(context.Background(), sampleProcessed())
	require.NoError(t, err)
	assert.Equal(t, "O mês teve crescimento de 12,5% em usuários.", text)
}

func TestAnalyze_RetriesThenSucceeds(t *testing.T) {
	client := &mockAnthropicClient{}
	defer client.AssertExpectations(t)

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{Text: "Resumo executivo."}, nil).Once()

	a := New(client, "claude-haiku-4-5-20251001", 2, time.Minute)
	text, err := a.Analyze(context.Background(), sampleProcessed())
	require.NoError(t, err)
	assert.Equal(t, "Resumo executivo.", text)
}

func TestAnalyze_FallsBackAfterRetryBudget(t *testing.T) {
	client := &mockAnthropicClient{}
	defer client.AssertExpectations(t)

	// maxRetries=2 means 3 attempts total.
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Times(3)

	a := New(client, "claude-haiku-4-5-20251001", 2, time.Minute)
	text, err := a.Analyze(context.Background(), sampleProcessed())
	require.NoError(t, err)
	assert.Equal(t, FallbackAnalysis, text)
}

func TestAnalyze_EmptyResponseCountsAsFailure(t *testing.T) {
	client := &mockAnthropicClient{}
	defer client.AssertExpectations(t)

	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{Text: "   "}, nil).Times(2)

	a := New(client, "claude-haiku-4-5-20251001", 1, time.Minute)
	text, err := a.Analyze(context.Background(), sampleProcessed())
	require.NoError(t, err)
	assert.Equal(t, FallbackAnalysis, text)
}
