package vault

import (
	"context"
	"fmt"

	"recvault/internal/config"
	"recvault/internal/registry"
)

// NewVaultFromConfig creates an ArchiveVault based on the archive config type.
// An empty type returns nil: archival is disabled.
func NewVaultFromConfig(cfg config.ArchiveConfig) (registry.ArchiveVault, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryVault(), nil
	case "s3":
		return NewS3Vault(context.Background(), cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
