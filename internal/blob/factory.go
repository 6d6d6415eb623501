package blob

import (
	"context"
	"fmt"

	"protocoldesk/internal/config"
	"protocoldesk/internal/infra/blob/fs"
	memorystore "protocoldesk/internal/infra/blob/memory"
	infraS3 "protocoldesk/internal/infra/blob/s3"
)

// S3Config configures the S3 / MinIO backend.
type S3Config = infraS3.Config

// Open selects a Store from cfg.Driver: fs (default), s3 or memory.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a Store writing under root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local Store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests returns an S3 Store talking to an in-process fake.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
