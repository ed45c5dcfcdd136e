package entra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

const (
	defaultTimeout    = 120 * time.Second
	maxRetriesOn429   = 5
	maxErrorBodySize  = 1 << 20 // 1 MiB
	applicationsTop   = "999"
	applicationSelect = "id,appId,displayName,passwordCredentials,keyCredentials"
	tokenExpiryLeeway = 30 * time.Second
	userAgent         = "azmonitor"

	GraphPublic     = "https://graph.microsoft.com/v1.0"
	GraphGovernment = "https://graph.microsoft.us/v1.0"
	GraphChina      = "https://microsoftgraph.chinacloudapi.cn/v1.0"
)

// ErrApplicationNotFound is returned when no application has the requested appId.
var ErrApplicationNotFound = errors.New("application not found")

type Options struct {
	HTTPClient *http.Client
	// GraphBaseURL includes the API version, e.g. https://graph.microsoft.com/v1.0.
	GraphBaseURL string
}

type Client struct {
	cred azcore.TokenCredential

	http         *http.Client
	graphBaseURL string
	tokenScope   string

	mu                sync.Mutex
	cachedToken       string
	cachedTokenExpiry time.Time
}

type PasswordCredential struct {
	KeyID          string `json:"keyId"`
	DisplayName    string `json:"displayName"`
	EndDateTimeRaw string `json:"endDateTime"`
	Hint           string `json:"hint"`
}

type KeyCredential struct {
	KeyID          string `json:"keyId"`
	DisplayName    string `json:"displayName"`
	Type           string `json:"type"`
	Usage          string `json:"usage"`
	EndDateTimeRaw string `json:"endDateTime"`
}

type Application struct {
	ID                  string               `json:"id"`
	AppID               string               `json:"appId"`
	DisplayName         string               `json:"displayName"`
	PasswordCredentials []PasswordCredential `json:"passwordCredentials"`
	KeyCredentials      []KeyCredential      `json:"keyCredentials"`
}

// GraphBaseForCloud returns the Graph endpoint matching a configured cloud name.
func GraphBaseForCloud(cloudName string) string {
	switch strings.TrimSpace(cloudName) {
	case "AzureUSGovernment":
		return GraphGovernment
	case "AzureChinaCloud":
		return GraphChina
	default:
		return GraphPublic
	}
}

func New(cred azcore.TokenCredential) (*Client, error) {
	return NewWithOptions(cred, Options{})
}

func NewWithOptions(cred azcore.TokenCredential, opts Options) (*Client, error) {
	if cred == nil {
		return nil, errors.New("entra credential is required")
	}

	graphBase := strings.TrimRight(strings.TrimSpace(opts.GraphBaseURL), "/")
	if graphBase == "" {
		graphBase = GraphPublic
	}
	u, err := url.Parse(graphBase)
	if err != nil {
		return nil, fmt.Errorf("entra graph base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("entra graph base url %q must be absolute", graphBase)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		cred:         cred,
		http:         httpClient,
		graphBaseURL: graphBase,
		tokenScope:   u.Scheme + "://" + u.Host + "/.default",
	}, nil
}

// Applications lists every application registration, fetching one page per
// step of the sequence. Breaking out of the loop stops further page requests.
func (c *Client) Applications(ctx context.Context) iter.Seq2[Application, error] {
	return func(yield func(Application, error) bool) {
		endpoint, err := c.graphURL("/applications", url.Values{
			"$select": []string{applicationSelect},
			"$top":    []string{applicationsTop},
		})
		if err != nil {
			yield(Application{}, err)
			return
		}

		for raw, err := range c.listPaged(ctx, endpoint) {
			if err != nil {
				yield(Application{}, err)
				return
			}
			var app Application
			if err := json.Unmarshal(raw, &app); err != nil {
				yield(Application{}, fmt.Errorf("decode application: %w", err))
				return
			}
			if !yield(app, nil) {
				return
			}
		}
	}
}

// ApplicationByAppID fetches the registration whose appId (client id) matches.
func (c *Client) ApplicationByAppID(ctx context.Context, appID string) (Application, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return Application{}, errors.New("application id is required")
	}

	key := "(appId='" + strings.ReplaceAll(appID, "'", "''") + "')"
	endpoint, err := c.graphURL("/applications"+key, url.Values{
		"$select": []string{applicationSelect},
	})
	if err != nil {
		return Application{}, err
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Application{}, fmt.Errorf("%w: %s", ErrApplicationNotFound, appID)
		}
		return Application{}, err
	}

	var app Application
	if err := json.Unmarshal(body, &app); err != nil {
		return Application{}, fmt.Errorf("decode application: %w", err)
	}
	return app, nil
}

func (c *Client) listPaged(ctx context.Context, endpoint string) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for {
			body, err := c.get(ctx, endpoint)
			if err != nil {
				yield(nil, err)
				return
			}
			var page struct {
				Value    []json.RawMessage `json:"value"`
				NextLink string            `json:"@odata.nextLink"`
			}
			if err := json.Unmarshal(body, &page); err != nil {
				yield(nil, err)
				return
			}
			for _, raw := range page.Value {
				if !yield(raw, nil) {
					return
				}
			}

			next := strings.TrimSpace(page.NextLink)
			if next == "" {
				return
			}
			endpoint = next
		}
	}
}

func (c *Client) graphURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.graphBaseURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	u.Fragment = ""
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetriesOn429; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusGatewayTimeout {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			resp.Body.Close()
			if readErr != nil {
				return nil, readErr
			}
			lastErr = newAPIError("graph api throttled", endpoint, resp, body)
			if attempt == maxRetriesOn429 {
				return nil, lastErr
			}
			wait, ok := retryAfterDuration(resp.Header.Get("Retry-After"))
			if !ok {
				wait = retryBackoff(attempt)
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			resp.Body.Close()
			if readErr != nil {
				return nil, readErr
			}
			return nil, newAPIError("graph api failed", endpoint, resp, body)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		return body, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("graph request failed")
}

// token returns a cached access token for the Graph scope, asking the run
// credential for a new one when the cached token is close to expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	now := time.Now()

	c.mu.Lock()
	cached := c.cachedToken
	exp := c.cachedTokenExpiry
	c.mu.Unlock()

	if strings.TrimSpace(cached) != "" && exp.After(now.Add(tokenExpiryLeeway)) {
		return cached, nil
	}

	tok, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{c.tokenScope}})
	if err != nil {
		return "", fmt.Errorf("acquire graph token: %w", err)
	}
	if strings.TrimSpace(tok.Token) == "" {
		return "", errors.New("graph token response missing access token")
	}

	c.mu.Lock()
	c.cachedToken = tok.Token
	c.cachedTokenExpiry = tok.ExpiresOn
	c.mu.Unlock()

	return tok.Token, nil
}

func retryAfterDuration(header string) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func retryBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	wait := time.Second * time.Duration(1<<attempt)
	const max = 30 * time.Second
	if wait > max {
		wait = max
	}
	return wait
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
