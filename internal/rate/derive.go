package rate

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"antiochus/pkg/contract"
)

// timeNow 便于测试替换。
var timeNow = time.Now

// DeriveKeyFromURL 以小写主机名（不含端口）作为限流分组键。
// 非 http(s) URL 或缺少主机时返回 ErrInvalidInput。
func DeriveKeyFromURL(raw string) (LimitKey, error) {
	if !contract.IsURL(raw) {
		return "", fmt.Errorf("%w: not an http(s) url: %q", contract.ErrInvalidInput, raw)
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: url without host: %q", contract.ErrInvalidInput, raw)
	}
	return LimitKey(host), nil
}
