// Package deliver sends the finished report to the client over WhatsApp and
// email. WhatsApp is best effort; email failure fails the delivery.
package deliver

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metria/report-cli/pkg/mail"
	"github.com/metria/report-cli/pkg/zapi"
)

// Request identifies the recipient and artifact for one delivery.
type Request struct {
	ClientName  string
	PeriodLabel string // YYYY-MM
	Email       string
	Phone       string
	PdfURL      string
}

// Result records which channels actually went out. A missing destination on a
// channel is not a failure; the channel is simply skipped.
type Result struct {
	WhatsAppSent bool
	EmailSent    bool
}

// Deliverer sends a report over the configured channels.
type Deliverer interface {
	Deliver(ctx context.Context, req Request) (Result, error)
}

// ChannelDeliverer implements Deliverer on Z-API (WhatsApp) and Resend.
type ChannelDeliverer struct {
	whatsapp zapi.Client
	mail     mail.Client
}

// New creates a ChannelDeliverer.
func New(whatsapp zapi.Client, mailer mail.Client) *ChannelDeliverer {
	return &ChannelDeliverer{whatsapp: whatsapp, mail: mailer}
}

// Deliver attempts WhatsApp first, then email. WhatsApp problems (instance
// down, send failure) are logged and swallowed; an email send failure is
// returned as an error with whatever was already sent recorded in the Result.
// Without a PDF URL there is nothing to send and both channels are skipped.
func (d *ChannelDeliverer) Deliver(ctx context.Context, req Request) (Result, error) {
	var res Result
	log := zap.L().With(zap.String("client", req.ClientName), zap.String("period", req.PeriodLabel))

	if req.PdfURL == "" {
		log.Info("no report artifact url, skipping delivery")
		return res, nil
	}

	if req.Phone != "" {
		res.WhatsAppSent = d.tryWhatsApp(ctx, req, log)
	}

	if req.Email != "" {
		err := d.mail.SendReportEmail(ctx, mail.ReportEmail{
			To:          req.Email,
			ClientName:  req.ClientName,
			PeriodLabel: req.PeriodLabel,
			PdfURL:      req.PdfURL,
		})
		if err != nil {
			return res, eris.Wrap(err, "deliver: send email")
		}
		res.EmailSent = true
		log.Info("report email sent", zap.String("to", req.Email))
	}

	return res, nil
}

func (d *ChannelDeliverer) tryWhatsApp(ctx context.Context, req Request, log *zap.Logger) bool {
	healthy, err := d.whatsapp.CheckHealth(ctx)
	if err != nil {
		log.Warn("whatsapp health check failed", zap.Error(err))
		return false
	}
	if !healthy {
		log.Warn("whatsapp instance not connected, skipping channel")
		return false
	}

	caption := fmt.Sprintf("Relatório de marketing - %s - %s:\n%s", req.ClientName, req.PeriodLabel, req.PdfURL)
	if err := d.whatsapp.SendDocument(ctx, req.Phone, caption, req.PdfURL); err != nil {
		log.Warn("whatsapp send failed, email is the fallback", zap.Error(err))
		return false
	}
	log.Info("report sent over whatsapp")
	return true
}
