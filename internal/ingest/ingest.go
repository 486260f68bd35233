// Package ingest pulls monthly metrics from the configured external sources
// and persists them per (client, source, period). Source failures are
// isolated: one provider going down never blocks the others, except for rate
// limiting, which escapes to the caller so the whole stage can be retried.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metria/report-cli/internal/crypto"
	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/internal/store"
	"github.com/metria/report-cli/pkg/apierr"
	"github.com/metria/report-cli/pkg/googleanalytics"
	"github.com/metria/report-cli/pkg/googleoauth"
	"github.com/metria/report-cli/pkg/metaads"
	"github.com/metria/report-cli/pkg/searchconsole"
)

// Result summarizes one ingestion pass over a client's configured sources.
type Result struct {
	Succeeded []model.MetricSource
	Failed    []model.IngestFailure
}

// AllFailed reports whether every attempted source failed. An empty pass
// (no sources configured) is not a failure.
func (r Result) AllFailed() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) > 0
}

// Ingestor fetches metrics for a client and period from every source the
// client has both credentials and report configuration for.
type Ingestor struct {
	store       store.Store
	crypto      crypto.Encryptor
	ga          googleanalytics.Client
	gsc         searchconsole.Client
	meta        metaads.Client
	oauth       googleoauth.Client
	tokenBuffer time.Duration

	now func() time.Time
}

// New creates an Ingestor. tokenBuffer is the freshness lookahead applied
// before a Google access token is considered usable.
func New(st store.Store, enc crypto.Encryptor, ga googleanalytics.Client, gsc searchconsole.Client, meta metaads.Client, oauth googleoauth.Client, tokenBuffer time.Duration) *Ingestor {
	return &Ingestor{
		store:       st,
		crypto:      enc,
		ga:          ga,
		gsc:         gsc,
		meta:        meta,
		oauth:       oauth,
		tokenBuffer: tokenBuffer,
		now:         time.Now,
	}
}

// Ingest fetches and persists metrics for all configured sources. A non-nil
// error is returned only for rate limiting (so the caller can retry the whole
// stage) or for storage failures; per-source auth and provider errors are
// reported in the Result instead.
func (i *Ingestor) Ingest(ctx context.Context, client *model.Client, period time.Time) (Result, error) {
	var res Result
	log := zap.L().With(zap.String("client_id", client.ID), zap.String("period", model.PeriodLabel(period)))

	if err := client.Integrations.Validate(); err != nil {
		return res, eris.Wrap(err, "ingest: invalid integrations")
	}

	startDate, endDate := model.MonthRange(period)

	googleSources := i.configuredGoogleSources(client)
	if len(googleSources) > 0 {
		accessToken, refreshErr := i.freshGoogleToken(ctx, client)
		if refreshErr != nil {
			log.Warn("google token refresh failed, skipping google sources", zap.Error(refreshErr))
			for _, src := range googleSources {
				res.Failed = append(res.Failed, model.IngestFailure{Source: src, Reason: model.ReasonTokenRefreshFailed})
			}
		} else {
			for _, src := range googleSources {
				data, err := i.fetchGoogleSource(ctx, src, client, accessToken, startDate, endDate)
				if err != nil {
					if apierr.IsRateLimit(err) {
						return res, eris.Wrapf(err, "ingest: %s rate limited", src)
					}
					reason := classify(err)
					log.Warn("source ingestion failed",
						zap.String("source", string(src)), zap.String("reason", string(reason)), zap.Error(err))
					res.Failed = append(res.Failed, model.IngestFailure{Source: src, Reason: reason})
					continue
				}
				if err := i.persist(ctx, client, src, period, data); err != nil {
					return res, err
				}
				res.Succeeded = append(res.Succeeded, src)
			}
		}
	}

	if i.metaConfigured(client) {
		src := model.SourceMetaAds
		switch {
		case i.metaTokenExpired(client):
			log.Warn("meta token expired", zap.String("source", string(src)))
			res.Failed = append(res.Failed, model.IngestFailure{Source: src, Reason: model.ReasonTokenExpired})
		default:
			token, err := i.crypto.Decrypt(client.Integrations.Meta.AccessToken)
			if err != nil {
				return res, eris.Wrap(err, "ingest: decrypt meta token")
			}
			data, err := i.meta.FetchMetrics(ctx, metaads.FetchRequest{
				AccessToken: token,
				AdAccountID: client.ReportConfig.MetaAdAccountID,
				StartDate:   startDate,
				EndDate:     endDate,
			})
			if err != nil {
				if apierr.IsRateLimit(err) {
					return res, eris.Wrapf(err, "ingest: %s rate limited", src)
				}
				reason := classify(err)
				log.Warn("source ingestion failed",
					zap.String("source", string(src)), zap.String("reason", string(reason)), zap.Error(err))
				res.Failed = append(res.Failed, model.IngestFailure{Source: src, Reason: reason})
			} else {
				if err := i.persist(ctx, client, src, period, data); err != nil {
					return res, err
				}
				res.Succeeded = append(res.Succeeded, src)
			}
		}
	}

	log.Info("ingestion pass finished",
		zap.Int("succeeded", len(res.Succeeded)), zap.Int("failed", len(res.Failed)))
	return res, nil
}

// configuredGoogleSources returns the Google-backed sources the client has
// both credentials and a report target for, in deterministic order.
func (i *Ingestor) configuredGoogleSources(client *model.Client) []model.MetricSource {
	if client.Integrations.Google == nil {
		return nil
	}
	var sources []model.MetricSource
	if client.ReportConfig.GooglePropertyID != "" {
		sources = append(sources, model.SourceGoogleAnalytics)
	}
	if client.ReportConfig.GoogleSiteURL != "" {
		sources = append(sources, model.SourceSearchConsole)
	}
	return sources
}

func (i *Ingestor) metaConfigured(client *model.Client) bool {
	return client.Integrations.Meta != nil && client.ReportConfig.MetaAdAccountID != ""
}

func (i *Ingestor) metaTokenExpired(client *model.Client) bool {
	expiresAt := client.Integrations.Meta.ExpiresAt
	if expiresAt == 0 {
		return false
	}
	return time.UnixMilli(expiresAt).Before(i.now())
}

// freshGoogleToken returns a decrypted, usable Google access token, refreshing
// and persisting it first when the stored one expires within the buffer.
func (i *Ingestor) freshGoogleToken(ctx context.Context, client *model.Client) (string, error) {
	creds := client.Integrations.Google
	expiresAt := time.UnixMilli(creds.ExpiresAt)

	if expiresAt.After(i.now().Add(i.tokenBuffer)) {
		token, err := i.crypto.Decrypt(creds.AccessToken)
		if err != nil {
			return "", eris.Wrap(err, "ingest: decrypt google access token")
		}
		return token, nil
	}

	refreshToken, err := i.crypto.Decrypt(creds.RefreshToken)
	if err != nil {
		return "", eris.Wrap(err, "ingest: decrypt google refresh token")
	}
	refreshed, err := i.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		return "", eris.Wrap(err, "ingest: refresh google token")
	}

	encrypted, err := i.crypto.Encrypt(refreshed.AccessToken)
	if err != nil {
		return "", eris.Wrap(err, "ingest: encrypt refreshed token")
	}
	updated := client.Integrations
	updated.Google = &model.GoogleCredentials{
		AccessToken:  encrypted,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    refreshed.ExpiresAt.UnixMilli(),
	}
	if err := i.store.UpdateClientIntegrations(ctx, client.ID, updated); err != nil {
		return "", eris.Wrap(err, "ingest: persist refreshed token")
	}
	client.Integrations = updated

	return refreshed.AccessToken, nil
}

func (i *Ingestor) fetchGoogleSource(ctx context.Context, src model.MetricSource, client *model.Client, accessToken, startDate, endDate string) (any, error) {
	switch src {
	case model.SourceGoogleAnalytics:
		return i.ga.FetchMetrics(ctx, googleanalytics.FetchRequest{
			AccessToken: accessToken,
			PropertyID:  client.ReportConfig.GooglePropertyID,
			StartDate:   startDate,
			EndDate:     endDate,
		})
	case model.SourceSearchConsole:
		return i.gsc.FetchMetrics(ctx, searchconsole.FetchRequest{
			AccessToken: accessToken,
			SiteURL:     client.ReportConfig.GoogleSiteURL,
			StartDate:   startDate,
			EndDate:     endDate,
		})
	}
	return nil, eris.Errorf("ingest: unsupported google source %s", src)
}

func (i *Ingestor) persist(ctx context.Context, client *model.Client, src model.MetricSource, period time.Time, data any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return eris.Wrapf(err, "ingest: marshal %s data", src)
	}
	err = i.store.UpsertMetric(ctx, model.Metric{
		ClientID:  client.ID,
		AgencyID:  client.AgencyID,
		Source:    src,
		Period:    model.MonthStart(period),
		Data:      blob,
		FetchedAt: i.now().UTC(),
	})
	return eris.Wrapf(err, "ingest: persist %s metric", src)
}

// classify maps a provider error to a closed-set failure reason.
func classify(err error) model.IngestReason {
	switch {
	case apierr.IsStatus(err, 401):
		return model.ReasonAuth401
	case apierr.IsStatus(err, 403):
		return model.ReasonAuth403
	case apierr.IsRateLimit(err):
		return model.ReasonRateLimited
	default:
		return model.ReasonUnknown
	}
}
