// Package analyze produces the executive summary for a report using the
// Anthropic API, falling back to canned copy when the model is unavailable.
package analyze

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/pkg/anthropic"
)

const systemPrompt = `Você é um analista sênior de marketing digital.
Receba os dados de performance do mês e gere um Relatório Executivo em português brasileiro.

Regras:
- Máximo 4 parágrafos.
- Comece com o destaque positivo mais relevante.
- Aponte 1-2 pontos de atenção com sugestão de ação.
- Use números exatos (não arredonde demais).
- Tom profissional mas acessível (o leitor é dono de empresa, não técnico).
- NÃO invente dados. Use apenas o que foi fornecido.`

// FallbackAnalysis is used when every model attempt fails. The report still
// ships; the reader falls back to the charts and tables.
const FallbackAnalysis = "Os dados foram coletados. A análise automática não está disponível no momento. Revise os gráficos e métricas abaixo."

const maxTokens = 800

// Analyzer generates the executive summary text for processed metrics.
type Analyzer interface {
	Analyze(ctx context.Context, processed *model.ProcessedMetrics) (string, error)
}

// ModelAnalyzer implements Analyzer on the Anthropic messages API with a
// bounded retry budget and per-call timeout.
type ModelAnalyzer struct {
	client     anthropic.Client
	model      string
	maxRetries int
	timeout    time.Duration
}

// New creates a ModelAnalyzer. maxRetries is the number of attempts after the
// first; timeout bounds each individual call.
func New(client anthropic.Client, modelName string, maxRetries int, timeout time.Duration) *ModelAnalyzer {
	return &ModelAnalyzer{
		client:     client,
		model:      modelName,
		maxRetries: maxRetries,
		timeout:    timeout,
	}
}

// Analyze asks the model for an executive summary of the processed metrics.
// It never returns an error: after exhausting the retry budget, or on empty
// responses, it returns the fallback copy so delivery is never blocked on the
// model.
func (a *ModelAnalyzer) Analyze(ctx context.Context, processed *model.ProcessedMetrics) (string, error) {
	payload, err := json.MarshalIndent(processed, "", "  ")
	if err != nil {
		zap.L().Warn("metrics serialization failed, using fallback analysis", zap.Error(err))
		return FallbackAnalysis, nil
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		text, err := a.attempt(ctx, string(payload))
		if err == nil && text != "" {
			return text, nil
		}
		if err == nil {
			err = eris.New("analyze: empty model response")
		}
		lastErr = err
		zap.L().Warn("analysis attempt failed",
			zap.Int("attempt", attempt+1), zap.Int("max_attempts", a.maxRetries+1), zap.Error(err))
	}

	zap.L().Warn("all analysis attempts failed, using fallback", zap.Error(lastErr))
	return FallbackAnalysis, nil
}

func (a *ModelAnalyzer) attempt(ctx context.Context, metricsJSON string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: "Analise os seguintes dados de marketing e gere o relatório executivo:\n\n" + metricsJSON,
			},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "analyze: create message")
	}
	return strings.TrimSpace(resp.Text), nil
}
