package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"sync"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

type Kind string

const (
	KindAvatar Kind = "avatars"
	KindImage  Kind = "images"
)

// Extensions we accept, and the image format each must decode as.
var allowedExtensions = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

var ErrUploadsDisabled = errors.New("uploads are not configured")

// The upload was rejected for something the uploader can fix.
type InvalidUploadError struct {
	Reason string
}

func (e *InvalidUploadError) Error() string {
	return e.Reason
}

func invalidUpload(format string, args ...any) error {
	return &InvalidUploadError{Reason: fmt.Sprintf(format, args...)}
}

var (
	clientOnce sync.Once
	client     *s3.Client
	clientErr  error
)

func getClient(ctx context.Context) (*s3.Client, error) {
	clientOnce.Do(func() {
		cfg := config.Config.Uploads
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, ""),
			),
			awsconfig.WithRegion(cfg.S3Region),
		}
		if cfg.S3Endpoint != "" {
			opts = append(opts, awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.S3Endpoint}, nil
			})))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			clientErr = oops.New(err, "failed to configure S3 client")
			return
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	})
	return client, clientErr
}

type ImageInfo struct {
	Extension     string
	ContentType   string
	Width, Height int
}

/*
Checks that content is a real image of an allowed type, no bigger than
maxSize bytes, and that its filename extension agrees with what it decodes
as.
*/
func ValidateImage(filename string, content []byte, maxSize int64) (ImageInfo, error) {
	if len(content) == 0 {
		return ImageInfo{}, invalidUpload("file is empty")
	}
	if int64(len(content)) > maxSize {
		return ImageInfo{}, invalidUpload("file is too large (max %d MB)", maxSize/(1024*1024))
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	wantFormat, ok := allowedExtensions[ext]
	if !ok {
		return ImageInfo{}, invalidUpload("file type not allowed, use jpg, jpeg, png, gif, or webp")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return ImageInfo{}, invalidUpload("file is not a valid image")
	}
	if format != wantFormat {
		return ImageInfo{}, invalidUpload("file contents are %s, not %s", format, ext)
	}

	return ImageInfo{
		Extension:   ext,
		ContentType: contentTypes[format],
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

func ObjectKey(kind Kind, id uuid.UUID, ext string) string {
	return fmt.Sprintf("%s/%s.%s", kind, id, ext)
}

func PublicUrl(cfg config.UploadsConfig, key string) string {
	if cfg.S3PublicUrl != "" {
		return cfg.S3PublicUrl + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(cfg.S3Endpoint, "/"), cfg.S3Bucket, key)
}

// The object key behind one of our public URLs, or false if the URL points
// somewhere else.
func KeyFromUrl(cfg config.UploadsConfig, url string) (string, bool) {
	prefix := PublicUrl(cfg, "")
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}

type UploadInput struct {
	Kind     Kind
	Filename string
	Content  []byte
}

type Upload struct {
	Key           string
	Url           string
	ContentType   string
	Width, Height int
}

func Create(ctx context.Context, in UploadInput) (*Upload, error) {
	cfg := config.Config.Uploads
	if !cfg.Enabled() {
		return nil, ErrUploadsDisabled
	}

	info, err := ValidateImage(in.Filename, in.Content, cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	s3Client, err := getClient(ctx)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(in.Kind, uuid.New(), info.Extension)
	upload := func() error {
		_, err := s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &cfg.S3Bucket,
			Key:         &key,
			Body:        bytes.NewReader(in.Content),
			ACL:         types.ObjectCannedACLPublicRead,
			ContentType: &info.ContentType,
		})
		return err
	}

	err = upload()
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) && apiError.ErrorCode() == "NoSuchBucket" {
			_, err := s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
				Bucket: &cfg.S3Bucket,
			})
			if err != nil {
				return nil, oops.New(err, "failed to create uploads bucket")
			}

			err = upload()
			if err != nil {
				return nil, oops.New(err, "failed to upload file")
			}
		} else {
			return nil, oops.New(err, "failed to upload file")
		}
	}

	logging.ExtractLogger(ctx).Info().
		Str("key", key).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("uploaded image")

	return &Upload{
		Key:         key,
		Url:         PublicUrl(cfg, key),
		ContentType: info.ContentType,
		Width:       info.Width,
		Height:      info.Height,
	}, nil
}

// Removes a previously uploaded file. URLs that aren't ours are ignored.
func Delete(ctx context.Context, url string) error {
	cfg := config.Config.Uploads
	if !cfg.Enabled() {
		return nil
	}
	key, ok := KeyFromUrl(cfg, url)
	if !ok {
		return nil
	}

	s3Client, err := getClient(ctx)
	if err != nil {
		return err
	}
	_, err = s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &cfg.S3Bucket,
		Key:    &key,
	})
	if err != nil {
		return oops.New(err, "failed to delete %s", key)
	}
	return nil
}
