// Package artifact persists compiled report documents to object storage and
// hands back time-limited download URLs.
package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metria/report-cli/pkg/r2"
)

const pdfContentType = "application/pdf"

// Store uploads report PDFs and signs download URLs.
type Store interface {
	// Save uploads the PDF for (clientID, period) and returns a signed URL.
	// When object storage is not configured it returns "" and no error; the
	// report completes without an artifact.
	Save(ctx context.Context, clientID string, period time.Time, pdf []byte) (string, error)
}

// R2Store implements Store on Cloudflare R2.
type R2Store struct {
	client    r2.Client
	urlExpiry time.Duration
}

// New creates an R2Store. urlExpiry bounds how long signed URLs stay valid.
func New(client r2.Client, urlExpiry time.Duration) *R2Store {
	return &R2Store{client: client, urlExpiry: urlExpiry}
}

// Key returns the deterministic object key for a client's monthly report.
// Re-runs for the same period overwrite the same object.
func Key(clientID string, period time.Time) string {
	return fmt.Sprintf("reports/%s/%s/report.pdf", clientID, period.Format("200601"))
}

func (s *R2Store) Save(ctx context.Context, clientID string, period time.Time, pdf []byte) (string, error) {
	if !s.client.Configured() {
		zap.L().Info("object storage not configured, skipping artifact upload",
			zap.String("client_id", clientID))
		return "", nil
	}

	key := Key(clientID, period)
	if err := s.client.Upload(ctx, key, pdf, pdfContentType); err != nil {
		return "", eris.Wrapf(err, "artifact: upload %s", key)
	}
	url, err := s.client.SignURL(ctx, key, s.urlExpiry)
	if err != nil {
		return "", eris.Wrapf(err, "artifact: sign url %s", key)
	}
	zap.L().Info("report artifact stored",
		zap.String("key", key), zap.Duration("url_expiry", s.urlExpiry))
	return url, nil
}
