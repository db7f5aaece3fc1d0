// pkg/artifact/artifact.go - uploads the built package to the distribution
// bucket and derives its public URL.

package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/macadmins/jcimporter/pkg/logging"
)

// Uploader pushes package artifacts to an S3 bucket.
type Uploader struct {
	client *s3.Client
	bucket string
}

// NewUploader builds an Uploader for the given bucket. Credentials come
// from the default AWS chain; region may be empty to use the chain's region.
func NewUploader(ctx context.Context, bucket, region string) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return &Uploader{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

// Upload stores the file at localPath in the bucket under its base name and
// returns the public object URL. The object lands in the bucket root, same
// as the original importer's layout.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening package %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("reading package metadata: %w", err)
	}
	objectName := filepath.Base(localPath)

	logging.Info("Uploading package", "object", objectName, "bucket", u.bucket, "size", info.Size())
	body := &progressReader{reader: file, total: info.Size(), object: objectName}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(objectName),
		Body:          body,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to bucket %s: %w", objectName, u.bucket, err)
	}

	location, err := u.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return "", fmt.Errorf("resolving bucket region for %s: %w", u.bucket, err)
	}
	region := string(location.LocationConstraint)
	if region == "" {
		// us-east-1 reports an empty LocationConstraint.
		region = "us-east-1"
	}

	url := fmt.Sprintf("https://s3-%s.amazonaws.com/%s/%s", region, u.bucket, objectName)
	logging.Info("Package uploaded", "url", url)
	return url, nil
}

// progressReader logs upload progress at coarse intervals. Cosmetic only.
type progressReader struct {
	reader   io.Reader
	total    int64
	object   string
	read     int64
	lastMark int
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct >= p.lastMark+10 {
			p.lastMark = pct - pct%10
			logging.Debug("Upload progress", "object", p.object, "percent", p.lastMark)
		}
	}
	return n, err
}
