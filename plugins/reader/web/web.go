package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"antiochus/internal/rate"
	"antiochus/pkg/contract"
	rfs "antiochus/plugins/reader/filesystem"
)

// Options 为 Web Reader 的可选配置。
type Options struct {
	// TimeoutSec 为单次请求超时（秒）。默认 30。
	TimeoutSec int `json:"timeout_sec,omitempty"`
	// RPS/Burst 为每主机的请求速率与突发容量。RPS 为 0 时取 2/1；<0 表示不限速。
	RPS   float64 `json:"rps,omitempty"`
	Burst int     `json:"burst,omitempty"`
	// CacheSize 为已抓取正文的 LRU 容量（条）。默认 128；<0 关闭缓存。
	CacheSize int `json:"cache_size,omitempty"`
	// MaxBodyBytes 为正文上限（字节），超出视为不可读。默认 32MiB。
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty"`
	// UserAgent 请求头。
	UserAgent string `json:"user_agent,omitempty"`
}

// Web 通过 HTTP(S) 抓取文档，实现 contract.Reader。
// 约束：单个 URL 的失败（网络错误、非 2xx、超限）以失败文档体现（ErrContent），不中止遍历。
type Web struct {
	client  *resty.Client
	gate    rate.Gate
	cache   *lru.Cache[string, []byte]
	maxBody int64
}

// New 构造 Web Reader。
func New(opts *Options) (*Web, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.TimeoutSec <= 0 {
		o.TimeoutSec = 30
	}
	if o.RPS == 0 {
		o.RPS, o.Burst = 2, 1
	}
	if o.CacheSize == 0 {
		o.CacheSize = 128
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 32 << 20
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = "antiochus"
	}
	client := resty.New()
	client.SetTimeout(time.Duration(o.TimeoutSec) * time.Second)
	client.SetHeader("User-Agent", o.UserAgent)
	w := &Web{client: client, gate: rate.NewGate(nil, rate.Limits{RPS: o.RPS, Burst: o.Burst}), maxBody: o.MaxBodyBytes}
	if o.CacheSize > 0 {
		c, err := lru.New[string, []byte](o.CacheSize)
		if err != nil {
			return nil, err
		}
		w.cache = c
	}
	return w, nil
}

// Iterate 依序抓取每个 URL 并回调。
func (w *Web) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := contract.NormalizeFileID(root)
		body, err := w.fetch(ctx, string(id))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := yield(id, rfs.FailedBody(id, err)); err != nil {
				return err
			}
			continue
		}
		if err := yield(id, io.NopCloser(bytes.NewReader(body))); err != nil {
			return err
		}
	}
	return nil
}

func (w *Web) fetch(ctx context.Context, url string) ([]byte, error) {
	if w.cache != nil {
		if b, ok := w.cache.Get(url); ok {
			return b, nil
		}
	}
	key, err := rate.DeriveKeyFromURL(url)
	if err != nil {
		return nil, err
	}
	if err := w.gate.Wait(ctx, rate.Ask{Key: key}); err != nil {
		return nil, err
	}
	resp, err := w.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("GET %s: http status %d", url, resp.StatusCode())
	}
	body := resp.Body()
	if int64(len(body)) > w.maxBody {
		return nil, fmt.Errorf("GET %s: body %d bytes exceeds limit %d", url, len(body), w.maxBody)
	}
	if w.cache != nil {
		w.cache.Add(url, body)
	}
	return body, nil
}
