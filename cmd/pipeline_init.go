package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/metria/report-cli/internal/analyze"
	"github.com/metria/report-cli/internal/artifact"
	"github.com/metria/report-cli/internal/compile"
	"github.com/metria/report-cli/internal/crypto"
	"github.com/metria/report-cli/internal/deliver"
	"github.com/metria/report-cli/internal/ingest"
	"github.com/metria/report-cli/internal/pipeline"
	"github.com/metria/report-cli/internal/process"
	"github.com/metria/report-cli/internal/store"
	anthropicpkg "github.com/metria/report-cli/pkg/anthropic"
	"github.com/metria/report-cli/pkg/googleanalytics"
	"github.com/metria/report-cli/pkg/googleoauth"
	"github.com/metria/report-cli/pkg/mail"
	"github.com/metria/report-cli/pkg/metaads"
	"github.com/metria/report-cli/pkg/r2"
	"github.com/metria/report-cli/pkg/searchconsole"
	"github.com/metria/report-cli/pkg/zapi"
)

// pipelineEnv holds the initialized store and runner shared by the run,
// batch and serve commands.
type pipelineEnv struct {
	Store  store.Store
	Runner *pipeline.Runner
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		path := cfg.Store.DatabaseURL
		if path == "" {
			path = "metria.db"
		}
		return store.NewSQLite(path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, all external clients, and the pipeline
// runner. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	enc, err := crypto.New(cfg.Crypto.Key)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	r2Client, err := r2.NewClient(ctx, r2.Config{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretAccessKey,
		Bucket:          cfg.R2.Bucket,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ingestor := ingest.New(
		st,
		enc,
		googleanalytics.NewClient(),
		searchconsole.NewClient(),
		metaads.NewClient(),
		googleoauth.NewClient(cfg.Google.ClientID, cfg.Google.ClientSecret),
		cfg.Pipeline.TokenExpiryBuffer(),
	)
	analyzer := analyze.New(
		anthropicpkg.NewClient(cfg.AI.Key),
		cfg.AI.Model,
		cfg.AI.MaxRetries,
		cfg.AI.Timeout(),
	)
	deliverer := deliver.New(
		zapi.NewClient(cfg.ZAPI.InstanceID, cfg.ZAPI.Token, cfg.ZAPI.SecurityToken),
		mail.NewClient(cfg.Email.ResendKey, cfg.Email.From),
	)

	runner := pipeline.New(
		st,
		ingestor,
		process.New(st),
		analyzer,
		compile.New(),
		artifact.New(r2Client, cfg.R2.URLExpiry()),
		deliverer,
		pipeline.Options{
			MaxIngestRetries: cfg.Pipeline.MaxIngestRetries,
			IngestBackoff:    cfg.Pipeline.IngestBackoff(),
		},
	)

	return &pipelineEnv{Store: st, Runner: runner}, nil
}
