// Package azurerm enumerates subscriptions, storage accounts and file shares
// through Azure Resource Manager.
package azurerm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
)

// shareStatsExpand makes the share GET include usage bytes.
const shareStatsExpand = "stats"

type Subscription struct {
	ID             string
	SubscriptionID string
	DisplayName    string
}

type StorageAccount struct {
	ID             string
	Name           string
	Kind           string
	ResourceGroup  string
	SubscriptionID string
}

type FileShareItem struct {
	ID   string
	Name string
}

type FileShare struct {
	ID         string
	Name       string
	UsageBytes *int64
	// Quota is the provisioned size in GiB.
	Quota *int32
}

type Options struct {
	Cloud cloud.Configuration
	// Transport overrides the HTTP pipeline transport, used by tests.
	Transport policy.Transporter
}

type Client struct {
	cred azcore.TokenCredential
	opts Options
	subs *armsubscriptions.Client

	mu       sync.Mutex
	accounts map[string]*armstorage.AccountsClient
	shares   map[string]*armstorage.FileSharesClient
}

func New(cred azcore.TokenCredential, opts Options) (*Client, error) {
	if cred == nil {
		return nil, errors.New("azure credential is required")
	}
	c := &Client{
		cred:     cred,
		opts:     opts,
		accounts: map[string]*armstorage.AccountsClient{},
		shares:   map[string]*armstorage.FileSharesClient{},
	}
	subs, err := armsubscriptions.NewClient(cred, c.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("create subscriptions client: %w", err)
	}
	c.subs = subs
	return c, nil
}

// clientOptions is rebuilt per client; the SDK constructors mutate what they are given.
func (c *Client) clientOptions() *arm.ClientOptions {
	o := &arm.ClientOptions{
		ClientOptions: azcore.ClientOptions{Cloud: c.opts.Cloud},
	}
	if c.opts.Transport != nil {
		o.Transport = c.opts.Transport
	}
	return o
}

func (c *Client) Subscriptions(ctx context.Context) iter.Seq2[Subscription, error] {
	newPager := func() (*runtime.Pager[armsubscriptions.ClientListResponse], error) {
		return c.subs.NewListPager(nil), nil
	}
	return pages(ctx, newPager, func(page armsubscriptions.ClientListResponse) []Subscription {
		out := make([]Subscription, 0, len(page.Value))
		for _, s := range page.Value {
			if s == nil {
				continue
			}
			out = append(out, Subscription{
				ID:             deref(s.ID),
				SubscriptionID: deref(s.SubscriptionID),
				DisplayName:    deref(s.DisplayName),
			})
		}
		return out
	})
}

func (c *Client) StorageAccounts(ctx context.Context, sub Subscription) iter.Seq2[StorageAccount, error] {
	newPager := func() (*runtime.Pager[armstorage.AccountsClientListResponse], error) {
		client, err := c.accountsClient(sub.SubscriptionID)
		if err != nil {
			return nil, err
		}
		return client.NewListPager(nil), nil
	}
	return pages(ctx, newPager, func(page armstorage.AccountsClientListResponse) []StorageAccount {
		out := make([]StorageAccount, 0, len(page.Value))
		for _, a := range page.Value {
			if a != nil {
				out = append(out, accountFromARM(a, sub.SubscriptionID))
			}
		}
		return out
	})
}

func (c *Client) FileShares(ctx context.Context, account StorageAccount) iter.Seq2[FileShareItem, error] {
	newPager := func() (*runtime.Pager[armstorage.FileSharesClientListResponse], error) {
		if account.ResourceGroup == "" {
			return nil, fmt.Errorf("storage account %s has no resource group", account.ID)
		}
		client, err := c.fileSharesClient(account.SubscriptionID)
		if err != nil {
			return nil, err
		}
		return client.NewListPager(account.ResourceGroup, account.Name, nil), nil
	}
	return pages(ctx, newPager, func(page armstorage.FileSharesClientListResponse) []FileShareItem {
		out := make([]FileShareItem, 0, len(page.Value))
		for _, s := range page.Value {
			if s != nil {
				out = append(out, FileShareItem{ID: deref(s.ID), Name: deref(s.Name)})
			}
		}
		return out
	})
}

// FileShareStats re-reads one share with statistics expanded; the summary
// listing carries no usage figures.
func (c *Client) FileShareStats(ctx context.Context, account StorageAccount, shareName string) (FileShare, error) {
	client, err := c.fileSharesClient(account.SubscriptionID)
	if err != nil {
		return FileShare{}, err
	}
	resp, err := client.Get(ctx, account.ResourceGroup, account.Name, shareName, &armstorage.FileSharesClientGetOptions{
		Expand: to.Ptr(shareStatsExpand),
	})
	if err != nil {
		return FileShare{}, err
	}
	share := FileShare{ID: deref(resp.ID), Name: deref(resp.Name)}
	if p := resp.FileShareProperties; p != nil {
		share.UsageBytes = p.ShareUsageBytes
		share.Quota = p.ShareQuota
	}
	return share, nil
}

func (c *Client) accountsClient(subscriptionID string) (*armstorage.AccountsClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.accounts[subscriptionID]; ok {
		return client, nil
	}
	client, err := armstorage.NewAccountsClient(subscriptionID, c.cred, c.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("create storage accounts client: %w", err)
	}
	c.accounts[subscriptionID] = client
	return client, nil
}

func (c *Client) fileSharesClient(subscriptionID string) (*armstorage.FileSharesClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.shares[subscriptionID]; ok {
		return client, nil
	}
	client, err := armstorage.NewFileSharesClient(subscriptionID, c.cred, c.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("create file shares client: %w", err)
	}
	c.shares[subscriptionID] = client
	return client, nil
}

func accountFromARM(a *armstorage.Account, subscriptionID string) StorageAccount {
	out := StorageAccount{
		ID:             deref(a.ID),
		Name:           deref(a.Name),
		SubscriptionID: subscriptionID,
	}
	if a.Kind != nil {
		out.Kind = string(*a.Kind)
	}
	if id, err := arm.ParseResourceID(out.ID); err == nil {
		out.ResourceGroup = id.ResourceGroupName
		if id.SubscriptionID != "" {
			out.SubscriptionID = id.SubscriptionID
		}
	}
	return out
}

// pages flattens an SDK pager into a lazy item sequence. Every iteration
// starts a new listing and pages are fetched only as the consumer advances.
func pages[R any, T any](ctx context.Context, newPager func() (*runtime.Pager[R], error), items func(R) []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		pager, err := newPager()
		if err != nil {
			yield(zero, err)
			return
		}
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range items(page) {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// IsKind reports whether kind equals one of allowed, ignoring case.
func IsKind(kind string, allowed ...armstorage.Kind) bool {
	for _, k := range allowed {
		if strings.EqualFold(kind, string(k)) {
			return true
		}
	}
	return false
}
