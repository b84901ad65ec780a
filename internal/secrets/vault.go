package secrets

import (
	"context"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"

	"observatory-calendar-backend/config"
)

// VaultSource reads secrets from a HashiCorp Vault KV mount. Each secret is
// stored as a single "value" key at <mount>/<path>.
type VaultSource struct {
	client *vault.Client
	mount  string
}

// NewVaultSource creates a Vault-backed secret source.
func NewVaultSource(cfg *config.VaultConfig) (*VaultSource, error) {
	vaultConfig := vault.DefaultConfig()
	if cfg.Address != "" {
		vaultConfig.Address = cfg.Address
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	} else if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
	}

	return &VaultSource{client: client, mount: cfg.Mount}, nil
}

// Get reads the decrypted secret value at the given path.
func (s *VaultSource) Get(ctx context.Context, path string) (string, error) {
	fullPath := fmt.Sprintf("%s/%s", s.mount, path)

	secret, err := s.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from %s: %w", fullPath, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, fullPath)
	}

	value, ok := secret.Data["value"].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s has no value key", ErrSecretNotFound, fullPath)
	}
	return value, nil
}
