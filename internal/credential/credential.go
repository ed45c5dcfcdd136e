// Package credential builds the single Azure identity used by a report run.
package credential

import (
	"errors"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Mode selects which credential chain a run authenticates with.
type Mode string

const (
	// ModeInteractive uses the developer's Azure CLI login.
	ModeInteractive Mode = "interactive"
	// ModeUnattended uses the default chain: environment, workload identity, managed identity.
	ModeUnattended Mode = "unattended"
)

func ParseMode(v string) Mode {
	return Mode(strings.ToLower(strings.TrimSpace(v))).Normalize()
}

func (m Mode) Normalize() Mode {
	switch m {
	case ModeInteractive:
		return ModeInteractive
	default:
		return ModeUnattended
	}
}

const (
	CloudPublic     = "AzurePublicCloud"
	CloudGovernment = "AzureUSGovernment"
	CloudChina      = "AzureChinaCloud"
)

// ResolveCloud maps a configured cloud name to its SDK configuration.
// Unknown names resolve to the public cloud.
func ResolveCloud(name string) cloud.Configuration {
	switch strings.TrimSpace(name) {
	case CloudGovernment:
		return cloud.AzureGovernment
	case CloudChina:
		return cloud.AzureChina
	default:
		return cloud.AzurePublic
	}
}

type Options struct {
	TenantID string
	Mode     Mode
	Cloud    cloud.Configuration
}

// Provider constructs credentials. The constructor fields exist so tests can
// observe which chain was selected without touching the network.
type Provider struct {
	newCLI     func(*azidentity.AzureCLICredentialOptions) (*azidentity.AzureCLICredential, error)
	newDefault func(*azidentity.DefaultAzureCredentialOptions) (*azidentity.DefaultAzureCredential, error)
}

func NewProvider() *Provider {
	return &Provider{
		newCLI:     azidentity.NewAzureCLICredential,
		newDefault: azidentity.NewDefaultAzureCredential,
	}
}

// New returns one credential valid for the whole run. Errors are fatal to the run.
func New(opts Options) (azcore.TokenCredential, error) {
	return NewProvider().Credential(opts)
}

func (p *Provider) Credential(opts Options) (azcore.TokenCredential, error) {
	if p == nil || p.newCLI == nil || p.newDefault == nil {
		return nil, errors.New("credential provider is not initialized")
	}
	tenantID := strings.TrimSpace(opts.TenantID)

	switch opts.Mode.Normalize() {
	case ModeInteractive:
		cred, err := p.newCLI(&azidentity.AzureCLICredentialOptions{TenantID: tenantID})
		if err != nil {
			return nil, err
		}
		return cred, nil
	default:
		cred, err := p.newDefault(&azidentity.DefaultAzureCredentialOptions{
			ClientOptions: azcore.ClientOptions{Cloud: opts.Cloud},
			TenantID:      tenantID,
		})
		if err != nil {
			return nil, err
		}
		return cred, nil
	}
}
