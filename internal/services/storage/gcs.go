// Package storage hands processed artifacts off to durable object storage so
// that only a URL has to travel back to the caller.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"

	"github.com/gnzdotmx/meetscribe/internal/utils"
)

// DefaultPublicBaseURL is where public GCS objects resolve
const DefaultPublicBaseURL = "https://storage.googleapis.com"

// GCSOptions configures a Google Cloud Storage bucket
type GCSOptions struct {
	Bucket string
	// CredentialsFile is a service-account JSON file. Application default
	// credentials are used when empty.
	CredentialsFile string
	PublicBaseURL   string
	// PredefinedACL is applied to every uploaded object. Leave it empty for buckets
	// with uniform access, which must then be publicly readable themselves.
	PredefinedACL string
	// ClientOptions replace credential discovery entirely when set
	ClientOptions []option.ClientOption
}

// GCSStore stores objects in a Google Cloud Storage bucket
type GCSStore struct {
	bucket  string
	baseURL string
	acl     string
	svc     *gcs.Service
}

var predefinedACLs = map[string]bool{
	"authenticatedRead":      true,
	"bucketOwnerFullControl": true,
	"bucketOwnerRead":        true,
	"private":                true,
	"projectPrivate":         true,
	"publicRead":             true,
}

// IsPredefinedACL reports whether acl is a GCS predefined object ACL
func IsPredefinedACL(acl string) bool {
	return predefinedACLs[acl]
}

// NewGCSStore creates a GCS-backed object store
func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if opts.PredefinedACL != "" && !IsPredefinedACL(opts.PredefinedACL) {
		return nil, fmt.Errorf("unknown predefined ACL %q", opts.PredefinedACL)
	}

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		ts, err := tokenSource(ctx, opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		clientOpts = []option.ClientOption{option.WithTokenSource(ts)}
	}

	svc, err := gcs.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	baseURL := opts.PublicBaseURL
	if baseURL == "" {
		baseURL = DefaultPublicBaseURL
	}

	return &GCSStore{
		bucket:  opts.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		acl:     opts.PredefinedACL,
		svc:     svc,
	}, nil
}

// tokenSource resolves credentials from a service-account file or the environment
func tokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, gcs.DevstorageReadWriteScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
		return creds.TokenSource, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, gcs.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("failed to find default credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// Put uploads data to the bucket
func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key, ok := cleanKey(key)
	if !ok {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	obj := &gcs.Object{Name: key, ContentType: contentType}
	call := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx)
	if s.acl != "" {
		call = call.PredefinedAcl(s.acl)
	}
	if _, err := call.Do(); err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, s.bucket, err)
	}

	utils.LogVerbose("Uploaded %d bytes to gs://%s/%s", len(data), s.bucket, key)
	return s.baseURL + "/" + s.bucket + "/" + key, nil
}

// Delete removes an object from the bucket
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	key, ok := cleanKey(key)
	if !ok {
		return fmt.Errorf("invalid object key %q", key)
	}

	err := s.svc.Objects.Delete(s.bucket, key).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete gs://%s/%s: %w", s.bucket, key, err)
	}

	utils.LogVerbose("Deleted gs://%s/%s", s.bucket, key)
	return nil
}
