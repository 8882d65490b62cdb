package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// S3Options configures an S3Source.
type S3Options struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string // For S3-compatible services
	RoleARN         string // IAM role assumed with the Fly.io OIDC token
	AccessKeyID     string // Static credentials, used when RoleARN is empty
	SecretAccessKey string
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads catalog mirrors stored as <prefix>/<channel>.json, in the
// same body format the catalog service serves.
type S3Source struct {
	client objectGetter
	bucket string
	prefix string
}

// flyTokenRetriever implements stscreds.IdentityTokenRetriever for Fly.io OIDC
type flyTokenRetriever struct {
	socketPath string
	audience   string
}

// GetIdentityToken fetches an OIDC token from Fly.io's Unix socket API
func (f *flyTokenRetriever) GetIdentityToken() ([]byte, error) {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", f.socketPath)
			},
		},
		Timeout: 5 * time.Second,
	}

	reqBody, err := json.Marshal(map[string]string{
		"aud": f.audience,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := client.Post("http://localhost/v1/tokens/oidc", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	return token, nil
}

// NewS3Source creates an S3-backed source. With a RoleARN it assumes the role
// through web identity; otherwise it uses the static key pair, falling back to
// the default AWS credential chain when both are empty.
func NewS3Source(ctx context.Context, opts S3Options) (*S3Source, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.RoleARN == "" && opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if opts.RoleARN != "" {
		credProvider := stscreds.NewWebIdentityRoleProvider(
			sts.NewFromConfig(cfg),
			opts.RoleARN,
			&flyTokenRetriever{
				socketPath: "/.fly/api",
				audience:   "sts.amazonaws.com",
			},
		)
		cfg.Credentials = aws.NewCredentialsCache(credProvider)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Source(client, opts.Bucket, opts.Prefix), nil
}

func newS3Source(client objectGetter, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key holding channel's catalog.
func (s *S3Source) Key(channel string) string {
	return path.Join(s.prefix, NormalizeChannel(channel)+".json")
}

// Fetch implements Source.
func (s *S3Source) Fetch(ctx context.Context, channel string) ([]Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(channel)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return decodeCatalog(body)
}
