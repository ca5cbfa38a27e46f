package vault

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"snowadmin/pkg/models"
)

type azureSecretGetter interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// Azure reads secrets from an Azure Key Vault.
type Azure struct {
	client azureSecretGetter
}

// NewAzure creates a Key Vault client for cfg.URL. Credential "cli" uses the
// signed-in Azure CLI account; "default" uses the DefaultAzureCredential
// chain (environment, workload identity, managed identity, CLI).
func NewAzure(cfg models.VaultConfig) (*Azure, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("azure key vault url is required")
	}

	var (
		cred azcore.TokenCredential
		err  error
	)
	switch cfg.Credential {
	case "", "cli":
		cred, err = azidentity.NewAzureCLICredential(nil)
	case "default":
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	default:
		return nil, fmt.Errorf("unknown azure credential %q", cfg.Credential)
	}
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(cfg.URL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create key vault client: %w", err)
	}
	return &Azure{client: client}, nil
}

// GetSecret returns the latest version of the named secret. Errors from
// the SDK are returned unmodified.
func (a *Azure) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := a.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", err
	}
	if resp.Value == nil {
		return "", fmt.Errorf("%w: %s has no value", ErrNotFound, name)
	}
	return *resp.Value, nil
}
