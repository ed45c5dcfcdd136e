// Package fileshare reports how full every Azure file share is, walking
// subscriptions, storage accounts and shares.
package fileshare

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/connectors/azurerm"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/isolate"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/metrics"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/telemetry"
)

const (
	Name       = "fileshares"
	MetricName = "shareSpacePercentage"
)

var allowedKinds = []armstorage.Kind{
	armstorage.KindStorage,
	armstorage.KindStorageV2,
	armstorage.KindFileStorage,
}

// Source is the resource manager view the report walks. *azurerm.Client
// satisfies it.
type Source interface {
	Subscriptions(ctx context.Context) iter.Seq2[azurerm.Subscription, error]
	StorageAccounts(ctx context.Context, sub azurerm.Subscription) iter.Seq2[azurerm.StorageAccount, error]
	FileShares(ctx context.Context, account azurerm.StorageAccount) iter.Seq2[azurerm.FileShareItem, error]
	FileShareStats(ctx context.Context, account azurerm.StorageAccount, shareName string) (azurerm.FileShare, error)
}

type Options struct {
	// Connect authenticates and returns a source for one run.
	Connect func(ctx context.Context) (Source, error)
	Emitter *telemetry.Emitter
	Logger  *slog.Logger
}

type Report struct {
	connect func(ctx context.Context) (Source, error)
	emitter *telemetry.Emitter
	logger  *slog.Logger
}

func New(opts Options) (*Report, error) {
	if opts.Connect == nil {
		return nil, errors.New("file share report: connect func is required")
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = telemetry.Disabled()
	}
	return &Report{connect: opts.Connect, emitter: emitter, logger: opts.Logger}, nil
}

func (r *Report) Name() string { return Name }

// Run reports every share in scope. filter, when long enough, restricts the
// run to the storage account with that resource ID.
func (r *Report) Run(ctx context.Context, filter string) error {
	logger := reports.Logger(ctx, r.logger)
	r.emitter.WarnIfDisabled(logger)

	src, err := r.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect to resource manager: %w", err)
	}

	w := &walk{
		src:     src,
		emitter: r.emitter,
		logger:  logger,
		filter:  reports.NormalizeFilter(filter),
	}
	res, err := isolate.Each(ctx, logger, "iterate subscription", src.Subscriptions(ctx),
		func(sub azurerm.Subscription) []any {
			return []any{"subscription_id", sub.SubscriptionID, "subscription", sub.DisplayName}
		},
		w.subscription,
	)
	metrics.ObserveItems(Name, "subscription", res.Processed, res.Failed)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	logger.InfoContext(ctx, "subscriptions processed", "count", res.Total(), "failed", res.Failed)
	return nil
}

type walk struct {
	src     Source
	emitter *telemetry.Emitter
	logger  *slog.Logger
	filter  string
}

func (w *walk) subscription(ctx context.Context, sub azurerm.Subscription) error {
	w.logger.InfoContext(ctx, "iterating subscription", "subscription", sub.DisplayName, "subscription_id", sub.SubscriptionID)

	res, err := isolate.Each(ctx, w.logger, "retrieve storage account shares", w.src.StorageAccounts(ctx, sub),
		func(a azurerm.StorageAccount) []any { return []any{"account_id", a.ID} },
		func(ctx context.Context, account azurerm.StorageAccount) error {
			return w.account(ctx, sub, account)
		},
	)
	metrics.ObserveItems(Name, "account", res.Processed, res.Failed)
	if err != nil {
		return fmt.Errorf("list storage accounts: %w", err)
	}
	w.logger.InfoContext(ctx, "storage accounts processed", "subscription", sub.DisplayName, "count", res.Total(), "failed", res.Failed)
	return nil
}

func (w *walk) account(ctx context.Context, sub azurerm.Subscription, account azurerm.StorageAccount) error {
	if w.filter != "" && !strings.EqualFold(w.filter, account.ID) {
		return nil
	}
	if !azurerm.IsKind(account.Kind, allowedKinds...) {
		w.logger.InfoContext(ctx, "account ignored due to kind", "account_id", account.ID, "kind", account.Kind)
		metrics.ObserveSkipped(Name, "account")
		return nil
	}
	defer w.emitter.Flush()

	res, err := isolate.Each(ctx, w.logger, "retrieve share usage", w.src.FileShares(ctx, account),
		func(s azurerm.FileShareItem) []any { return []any{"account_id", account.ID, "share", s.Name} },
		func(ctx context.Context, item azurerm.FileShareItem) error {
			return w.share(ctx, sub, account, item)
		},
	)
	metrics.ObserveItems(Name, "share", res.Processed, res.Failed)
	if err != nil {
		return fmt.Errorf("list file shares: %w", err)
	}
	w.logger.InfoContext(ctx, "shares processed", "account", account.Name, "count", res.Total(), "failed", res.Failed)
	return nil
}

func (w *walk) share(ctx context.Context, sub azurerm.Subscription, account azurerm.StorageAccount, item azurerm.FileShareItem) error {
	share, err := w.src.FileShareStats(ctx, account, item.Name)
	if err != nil {
		return fmt.Errorf("get share stats: %w", err)
	}
	shareID := share.ID
	if shareID == "" {
		shareID = item.ID
	}

	u := Usage(share.UsageBytes, share.Quota)
	var usageBytes int64
	if share.UsageBytes != nil {
		usageBytes = *share.UsageBytes
	}
	w.logger.InfoContext(ctx, "share usage",
		"share_id", shareID,
		"percent", u.Percent,
		"usage_bytes", usageBytes,
	)

	w.emitter.Metric(MetricName, u.Percent, map[string]string{
		"shareId":            shareID,
		"usageMB":            strconv.FormatInt(u.UsageMB, 10),
		"quotaMB":            strconv.FormatInt(u.QuotaMB, 10),
		"storageAccountName": account.Name,
		"subscriptionName":   sub.DisplayName,
	})
	return nil
}
