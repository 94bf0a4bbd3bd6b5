package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote/azure"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote/fileshare"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote/memory"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote/s3"
)

const (
	RemoteMemory    = "memory"
	RemoteFileShare = "fileshare"
	RemoteAzure     = "azure"
	RemoteS3        = "s3"
)

// decodeSection decodes a backend section and validates its tags.
func decodeSection(section map[string]any, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := d.Decode(section); err != nil {
		return err
	}
	if err := validate.Struct(out); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// CreateRemoteBackend builds the backend named by cfg.Type.
func CreateRemoteBackend(ctx context.Context, cfg RemoteConfig, l *log.Entry) (remote.Backend, error) {
	switch cfg.Type {
	case RemoteMemory:
		return memory.New(), nil
	case RemoteFileShare:
		var c fileshare.Config
		if err := decodeSection(cfg.FileShare, &c); err != nil {
			return nil, fmt.Errorf("failed to decode fileshare config: %w", err)
		}
		return fileshare.New(c, l)
	case RemoteAzure:
		var c azure.Config
		if err := decodeSection(cfg.Azure, &c); err != nil {
			return nil, fmt.Errorf("failed to decode azure config: %w", err)
		}
		return azure.New(c, l)
	case RemoteS3:
		var c s3.Config
		if err := decodeSection(cfg.S3, &c); err != nil {
			return nil, fmt.Errorf("failed to decode s3 config: %w", err)
		}
		return s3.New(ctx, c, l)
	default:
		return nil, fmt.Errorf("unknown remote type: %q", cfg.Type)
	}
}

// CreateRemoteStorage wraps the configured backend in the folder and rename
// protocols. m may be nil.
func CreateRemoteStorage(ctx context.Context, cfg RemoteConfig, m remote.Metrics, l *log.Entry) (*remote.Storage, error) {
	b, err := CreateRemoteBackend(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	opts := []remote.Option{remote.WithCopyPolling(cfg.CopyPoll.Attempts, cfg.CopyPoll.Interval)}
	if cfg.TempDir != "" {
		opts = append(opts, remote.WithTempDir(cfg.TempDir))
	}
	if m != nil {
		opts = append(opts, remote.WithMetrics(m))
	}
	l.WithFields(log.Fields{"remote": cfg.Type, "copy_attempts": cfg.CopyPoll.Attempts}).Info("remote storage initialized")
	return remote.NewStorage(b, l.WithField("component", "remote"), opts...), nil
}
