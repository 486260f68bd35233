// Package mail sends report delivery emails through Resend.
package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rotisserie/eris"
)

// ReportEmail describes one report delivery email.
type ReportEmail struct {
	To          string
	ClientName  string
	PeriodLabel string
	PdfURL      string
}

// Client defines the email operation used by the deliverer.
type Client interface {
	SendReportEmail(ctx context.Context, email ReportEmail) error
}

type resendClient struct {
	client *resend.Client
	from   string
}

// NewClient creates a Resend-backed mail client. An empty apiKey produces a
// client that fails on send; callers gate delivery on configuration.
func NewClient(apiKey, from string) Client {
	if from == "" {
		from = "relatorios@metria.com"
	}
	var rc *resend.Client
	if apiKey != "" {
		rc = resend.NewClient(apiKey)
	}
	return &resendClient{client: rc, from: from}
}

// Subject builds the delivery email subject line.
func Subject(clientName, periodLabel string) string {
	return fmt.Sprintf("Relatório de Marketing - %s - %s", clientName, periodLabel)
}

// Body builds the HTML body with the signed download link.
func Body(periodLabel, pdfURL string) string {
	return fmt.Sprintf(`<p>Olá,</p>
<p>Segue o relatório de marketing referente ao período %s.</p>
<p><a href="%s" target="_blank">Clique aqui para baixar o PDF</a></p>
<p>Atenciosamente,<br/>Equipe Metria</p>`, periodLabel, pdfURL)
}

func (c *resendClient) SendReportEmail(ctx context.Context, email ReportEmail) error {
	if c.client == nil {
		return eris.New("mail: resend api key not configured")
	}

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{email.To},
		Subject: Subject(email.ClientName, email.PeriodLabel),
		Html:    Body(email.PeriodLabel, email.PdfURL),
	}
	if _, err := c.client.Emails.SendWithContext(ctx, params); err != nil {
		return eris.Wrap(err, "mail: send report email")
	}
	return nil
}
