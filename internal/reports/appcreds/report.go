// Package appcreds reports how many days remain before each secret and
// certificate of the tenant's application registrations expires.
package appcreds

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/connectors/entra"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/isolate"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/metrics"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/telemetry"
)

const (
	Name = "secrets"

	SecretMetric      = "secretsDaysExpiry"
	CertificateMetric = "certificateDaysExpiry"

	expiryDateLayout = "2006-01-02"
)

// Source is the directory view the report walks. *entra.Client satisfies it.
type Source interface {
	Applications(ctx context.Context) iter.Seq2[entra.Application, error]
	ApplicationByAppID(ctx context.Context, appID string) (entra.Application, error)
}

type Options struct {
	// Connect authenticates and returns a source for one run.
	Connect func(ctx context.Context) (Source, error)
	Emitter *telemetry.Emitter
	Logger  *slog.Logger
	// SettleDelay is waited after each application's flush when telemetry is enabled.
	SettleDelay time.Duration
	Now         func() time.Time
}

type Report struct {
	connect     func(ctx context.Context) (Source, error)
	emitter     *telemetry.Emitter
	logger      *slog.Logger
	settleDelay time.Duration
	now         func() time.Time
}

func New(opts Options) (*Report, error) {
	if opts.Connect == nil {
		return nil, errors.New("application credential report: connect func is required")
	}
	if opts.SettleDelay < 0 {
		return nil, errors.New("application credential report: settle delay must not be negative")
	}
	r := &Report{
		connect:     opts.Connect,
		emitter:     opts.Emitter,
		logger:      opts.Logger,
		settleDelay: opts.SettleDelay,
		now:         opts.Now,
	}
	if r.emitter == nil {
		r.emitter = telemetry.Disabled()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

func (r *Report) Name() string { return Name }

// Run reports every credential of every application, or of the single
// application whose client id equals filter when filter is long enough.
func (r *Report) Run(ctx context.Context, filter string) error {
	logger := reports.Logger(ctx, r.logger)
	r.emitter.WarnIfDisabled(logger)

	src, err := r.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect to graph: %w", err)
	}

	appID := reports.NormalizeFilter(filter)
	logger.InfoContext(ctx, "retrieving apps from tenant", "app_id", appID)

	var apps iter.Seq2[entra.Application, error]
	if appID != "" {
		apps = single(ctx, logger, src, appID)
	} else {
		apps = src.Applications(ctx)
	}

	res, err := isolate.Each(ctx, logger, "iterate application", apps,
		func(app entra.Application) []any { return []any{"app_id", app.AppID} },
		func(ctx context.Context, app entra.Application) error {
			return r.application(ctx, logger, app)
		},
	)
	metrics.ObserveItems(Name, "application", res.Processed, res.Failed)
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}
	logger.InfoContext(ctx, "apps processed", "count", res.Total(), "failed", res.Failed)
	return nil
}

// single yields the one application with appID. An unknown id yields nothing.
func single(ctx context.Context, logger *slog.Logger, src Source, appID string) iter.Seq2[entra.Application, error] {
	return func(yield func(entra.Application, error) bool) {
		app, err := src.ApplicationByAppID(ctx, appID)
		if errors.Is(err, entra.ErrApplicationNotFound) {
			logger.InfoContext(ctx, "application not found", "app_id", appID)
			return
		}
		yield(app, err)
	}
}

// entry is a secret or a certificate reduced to what the report needs.
type entry struct {
	level       string
	metric      string
	idTag       string
	keyID       string
	displayName string
	endRaw      string
}

func entries(app entra.Application) (secrets, certs []entry) {
	for _, p := range app.PasswordCredentials {
		secrets = append(secrets, entry{level: "secret", metric: SecretMetric, idTag: "secretId", keyID: p.KeyID, displayName: p.DisplayName, endRaw: p.EndDateTimeRaw})
	}
	for _, k := range app.KeyCredentials {
		certs = append(certs, entry{level: "certificate", metric: CertificateMetric, idTag: "certificateId", keyID: k.KeyID, displayName: k.DisplayName, endRaw: k.EndDateTimeRaw})
	}
	return secrets, certs
}

func (r *Report) application(ctx context.Context, logger *slog.Logger, app entra.Application) error {
	secrets, certs := entries(app)
	logger.InfoContext(ctx, "retrieving data for app",
		"app_id", app.AppID,
		"secrets", len(secrets),
		"certificates", len(certs),
	)

	for _, group := range []struct {
		level string
		op    string
		items []entry
	}{
		{level: "secret", op: "iterate secret", items: secrets},
		{level: "certificate", op: "iterate certificate", items: certs},
	} {
		res, err := isolate.Each(ctx, logger, group.op, isolate.Slice(group.items),
			func(e entry) []any { return []any{"app_id", app.AppID, "key_id", e.keyID} },
			func(ctx context.Context, e entry) error {
				return r.entry(ctx, logger, app, e)
			},
		)
		metrics.ObserveItems(Name, group.level, res.Processed, res.Failed)
		if err != nil {
			return err
		}
	}

	if r.emitter.Enabled() {
		r.emitter.Flush()
		if err := sleep(ctx, r.settleDelay); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) entry(ctx context.Context, logger *slog.Logger, app entra.Application, e entry) error {
	logger.InfoContext(ctx, "credential expiry",
		"app_id", app.AppID,
		"kind", e.idTag,
		"key_id", e.keyID,
		"end_date_time", e.endRaw,
		"display_name", e.displayName,
	)
	expiry, ok, err := entra.ParseGraphTime(e.endRaw)
	if err != nil {
		return fmt.Errorf("parse end date time: %w", err)
	}
	if !ok {
		metrics.ObserveSkipped(Name, e.level)
		return nil
	}

	days := DaysUntil(expiry, r.now())
	tags := map[string]string{
		"applicationId":   app.AppID,
		"applicationName": app.DisplayName,
		e.idTag:           e.keyID,
		"expiryDate":      expiry.UTC().Format(expiryDateLayout),
	}
	r.emitter.Metric(e.metric, days, tags)

	tags["days"] = strconv.FormatFloat(days, 'f', -1, 64)
	r.emitter.Trace(e.metric, tags)
	r.emitter.Event(e.metric, tags)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
