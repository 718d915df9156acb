package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filevault/pkg/storage"
	"filevault/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// DefaultRegion 是未配置 Region 时的缺省值
const DefaultRegion = "eu-west-1"

// Adapter 实现了 storage.Backend 接口 (对象存储变体)
type Adapter struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	log     zerolog.Logger
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string // 可选，MinIO 之类的自建端点
	Region          string // 空时用 DefaultRegion
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Logger          *zerolog.Logger
}

// NewAdapter 初始化 S3 客户端 (适配 AWS SDK v2 最新规范)
// Bucket 的准备 (create-if-absent + CORS) 只在这里做一次，
// 任何一步失败都视为致命 (storage.ErrInit)，不要返回一个半残的后端
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	// 1. 加载基础配置 (仅包含 Region 和 Credentials)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load SDK config: %v", storage.ErrInit, err)
	}

	// 2. 创建 S3 客户端时，注入特定于 S3 的配置
	// 新版 SDK 推荐做法：使用 BaseEndpoint 而不是全局 Resolver
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// 【关键】MinIO 必须强制使用 Path Style
			// 即: http://host:9000/bucket/key
			o.UsePathStyle = true
		}
	})

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	a := &Adapter{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		log:     log,
	}

	// 3. Bucket create-if-absent
	if err := a.ensureBucket(ctx, region); err != nil {
		return nil, err
	}

	// 4. CORS 策略：允许浏览器直接 GET 签名 URL
	if err := a.ensureCORS(ctx); err != nil {
		return nil, err
	}

	a.log.Info().Str("event", "backend-init").Str("bucket", cfg.Bucket).Str("region", region).Msg("s3 backend ready")
	return a, nil
}

func (a *Adapter) ensureBucket(ctx context.Context, region string) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *s3types.NotFound
	if !errors.As(err, &notFound) && !strings.Contains(err.Error(), "404") {
		// 不是“桶不存在”，而是认证/网络问题
		return fmt.Errorf("%w: head bucket %s: %v", storage.ErrInit, a.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(a.bucket)}
	// us-east-1 不接受 LocationConstraint，其他区域必须带
	if region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if _, err := a.client.CreateBucket(ctx, input); err != nil {
		// 并发构造时别人可能刚创建完，再 Head 一次确认
		if _, headErr := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); headErr == nil {
			return nil
		}
		return fmt.Errorf("%w: create bucket %s: %v", storage.ErrInit, a.bucket, err)
	}
	return nil
}

func (a *Adapter) ensureCORS(ctx context.Context) error {
	maxAge := int32(storage.DefaultURLTTL / time.Second)
	_, err := a.client.PutBucketCors(ctx, &s3.PutBucketCorsInput{
		Bucket: aws.String(a.bucket),
		CORSConfiguration: &s3types.CORSConfiguration{
			CORSRules: []s3types.CORSRule{
				{
					AllowedMethods: []string{"GET"},
					AllowedOrigins: []string{"*"},
					AllowedHeaders: []string{"*"},
					ExposeHeaders: []string{
						"Accept-Ranges", "Content-Encoding",
						"Content-Length", "Content-Range",
					},
					MaxAgeSeconds: aws.Int32(maxAge),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: put bucket cors: %v", storage.ErrInit, err)
	}
	return nil
}

// Locate 用 HeadObject 做精确存在性探测
// 对于 S3，Head 请求比 List 便宜，而且 Key 内嵌完整 Hash，不存在前缀歧义
func (a *Adapter) Locate(ctx context.Context, hash types.Hash) (string, error) {
	key, err := storage.DeriveKey(hash)
	if err != nil {
		return "", err
	}

	_, err = a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return key, nil
	}
	if isNotFound(err) {
		return "", nil
	}
	return "", fmt.Errorf("%w: head %s: %v", storage.ErrUnavailable, key, err)
}

// Store 上传本地文件
func (a *Adapter) Store(ctx context.Context, localPath string, hash types.Hash) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", storage.ErrSourceNotFound, localPath)
		}
		return "", err
	}
	defer f.Close()

	// 1. 幂等性检查 (去重)
	// 已存在就直接跳过，绝不重复上传相同内容
	key, err := a.Locate(ctx, hash)
	if err != nil {
		return "", err
	}
	if key != "" {
		a.log.Debug().Str("event", "dedup-skip").Str("hash", hash.String()).Msg("object already stored")
		return key, nil
	}

	key, err = storage.DeriveKey(hash)
	if err != nil {
		return "", err
	}

	// 2. 执行上传 (流式，Body 直接挂文件句柄)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", storage.ErrUnavailable, key, err)
	}
	return key, nil
}

// Fetch 下载对象到 destDir/fileName
// 先写临时文件再 Rename：下载中断不会留下可见的半截文件
func (a *Adapter) Fetch(ctx context.Context, key, destDir, fileName string) (string, error) {
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			// Locate 之后对象消失了：硬错误
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: get %s: %v", storage.ErrUnavailable, key, err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(destDir, "temp-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: download %s: %v", storage.ErrUnavailable, key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	destPath := filepath.Join(destDir, fileName)
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

// IssueURL 签发 presigned GET URL
// 支持响应头覆盖：filename -> inline Content-Disposition, mime -> Content-Type
func (a *Adapter) IssueURL(ctx context.Context, key string, opts storage.URLOptions) (string, error) {
	// 签名本身不检查对象是否存在，这里显式 Head 一次
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: head %s: %v", storage.ErrUnavailable, key, err)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if opts.MimeType != "" {
		input.ResponseContentType = aws.String(opts.MimeType)
	}
	if opts.FileName != "" {
		input.ResponseContentDisposition = aws.String("inline; filename=" + opts.FileName)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = storage.DefaultURLTTL
	}

	req, err := a.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", storage.ErrUnavailable, key, err)
	}
	return req.URL, nil
}

// isNotFound 把 AWS 的各种“不存在”错误归一化
func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return true
	}
	// 兼容性：某些 S3 实现返回 generic 404 error string
	return strings.Contains(err.Error(), "404")
}
