package blob

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/mslinn/benchledger/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Open builds the blob configured in cfg. The returned close function
// releases any connection or file lock and is never nil.
func Open(cfg *config.Config) (Blob, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFile(cfg.GetLedgerPath()), noop, nil

	case config.BackendS3:
		client := NewS3Client(cfg.S3.Region, cfg.S3.Endpoint, cfg.S3.PathStyle, envCredentials())
		return NewS3(client, cfg.S3.Bucket, cfg.S3.Key), noop, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedis(rdb, cfg.Redis.Key), rdb.Close, nil

	case config.BackendBolt:
		b, err := OpenBolt(config.ExpandPath(cfg.Bolt.Path), cfg.Bolt.Bucket, cfg.Bolt.Key)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	case config.BackendHTTP:
		h := NewHTTP(cfg.HTTP.URL)
		if cfg.HTTP.Retries > 0 {
			h.MaxRetries = cfg.HTTP.Retries
		}
		return h, noop, nil
	}

	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// envCredentials reads static credentials from the standard AWS variables
func envCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		id := os.Getenv("AWS_ACCESS_KEY_ID")
		secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
}
