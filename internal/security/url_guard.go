package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URLGuard は記事コンテンツ中のURLと外部接続先を検証する。
type URLGuard interface {
	// NewSafeClient はプライベートアドレスへの接続を拒否するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は絶対URLをDNS解決なしで静的に検証する。
	ValidateURL(rawURL string) error

	// CheckContentURL は記事コンテンツに埋め込まれたURLを検証し、前後の空白を除いたURLを返す。
	// サイト内の絶対パス（"/images/a.png"）と、ValidateURLを通過する絶対URLのみ受け入れる。
	CheckContentURL(rawURL string) (string, bool)
}

var errEmptyURL = errors.New("empty URL")

// extraBlockedPrefixes は netip.Addr の判定メソッドで拾えない範囲。
var extraBlockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),     // カレントネットワーク
	netip.MustParsePrefix("100.64.0.0/10"), // CGNAT
}

type urlGuard struct{}

// NewURLGuard はURLGuardを生成する。
func NewURLGuard() *urlGuard {
	return &urlGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// 接続先IPの検査はDNS解決後にDialerで行われるため、DNSリバインディングも防げる。
// ホスティングバックエンドは公開エンドポイントなので80/443のみ許可する。
func (g *urlGuard) NewSafeClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(cfg).Client
}

func (g *urlGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("url %q has no host", rawURL)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return fmt.Errorf("address %s is not public", addr)
		}
		return nil
	}
	if localHostname(host) {
		return fmt.Errorf("host %q is local", host)
	}
	return nil
}

func (g *urlGuard) CheckContentURL(rawURL string) (string, bool) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return "", false
	}

	// "//host" はプロトコル相対URLなので外部URLとして扱う
	if strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") && !strings.ContainsAny(u, "\\\r\n") {
		return u, true
	}
	if g.ValidateURL(u) != nil {
		return "", false
	}
	return u, true
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range extraBlockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func localHostname(host string) bool {
	h := strings.TrimSuffix(strings.ToLower(host), ".")
	return h == "localhost" || strings.HasSuffix(h, ".localhost")
}
