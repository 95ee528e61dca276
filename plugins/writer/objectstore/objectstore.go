package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"antiochus/pkg/contract"
)

// Options: S3 兼容对象存储选项。
// 凭据优先取 AccessKey/SecretKey，为空时读取 *_env 指定的环境变量
// （缺省 ANTIOCHUS_S3_ACCESS_KEY / ANTIOCHUS_S3_SECRET_KEY）。
type Options struct {
	Endpoint     string `json:"endpoint"`
	Region       string `json:"region,omitempty"`
	Bucket       string `json:"bucket"`
	Prefix       string `json:"prefix,omitempty"`
	UseSSL       bool   `json:"use_ssl,omitempty"`
	AccessKey    string `json:"access_key,omitempty"`
	SecretKey    string `json:"secret_key,omitempty"`
	AccessKeyEnv string `json:"access_key_env,omitempty"`
	SecretKeyEnv string `json:"secret_key_env,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
}

// Store 将工件整体上传为对象（单次 PutObject，失败不留下部分对象）。
type Store struct {
	client      *minio.Client
	bucket      string
	region      string
	prefix      string
	contentType string

	initOnce sync.Once
	initErr  error
}

var (
	_ contract.Writer = (*Store)(nil)
	_ contract.Opener = (*Store)(nil)
)

// New 校验选项并构造客户端（不发起网络请求）。
func New(opts *Options) (*Store, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: objectstore options required", contract.ErrInvalidInput)
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: objectstore endpoint is required", contract.ErrInvalidInput)
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: objectstore bucket is required", contract.ErrInvalidInput)
	}
	access := strings.TrimSpace(firstNonEmpty(opts.AccessKey, os.Getenv(envOr(opts.AccessKeyEnv, "ANTIOCHUS_S3_ACCESS_KEY"))))
	secret := strings.TrimSpace(firstNonEmpty(opts.SecretKey, os.Getenv(envOr(opts.SecretKeyEnv, "ANTIOCHUS_S3_SECRET_KEY"))))
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: objectstore access key and secret key are required", contract.ErrInvalidInput)
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	ct := strings.TrimSpace(opts.ContentType)
	if ct == "" {
		ct = "text/csv; charset=utf-8"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init objectstore client: %w", err)
	}
	return &Store{client: client, bucket: bucket, region: region, prefix: strings.Trim(strings.TrimSpace(opts.Prefix), "/"), contentType: ct}, nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func envOr(name, def string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return def
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// key 将工件标识映射为对象键：统一正斜杠、去前导斜杠并禁止 '..' 逃逸。
func (s *Store) key(id contract.ArtifactID) (string, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(string(id)), "\\", "/")
	if raw == "" {
		return "", contract.ErrPathInvalid
	}
	k := path.Clean("/" + raw)
	if k == "/" || strings.Contains(raw, "../") || strings.HasSuffix(raw, "/..") || raw == ".." {
		return "", contract.ErrPathInvalid
	}
	k = strings.TrimPrefix(k, "/")
	if s.prefix != "" {
		k = s.prefix + "/" + k
	}
	return k, nil
}

// Write 读取全部字节后一次性上传。
func (s *Store) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := s.key(id)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, k, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: s.contentType,
	})
	return err
}

// Open 读取对象；对象或桶不存在时返回包装 fs.ErrNotExist 的错误。
func (s *Store) Open(ctx context.Context, id contract.ArtifactID) (io.ReadCloser, error) {
	k, err := s.key(id)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, k, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(k, err)
	}
	// GetObject 惰性请求；Stat 触发请求以尽早暴露不存在
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, notFound(k, err)
	}
	return obj, nil
}

func notFound(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
	}
	return err
}
