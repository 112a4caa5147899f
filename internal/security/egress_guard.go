package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var egressSchemes = []string{"http", "https"}

// 内部ネットワークとして扱うアドレス範囲。169.254.0.0/16 はクラウドのメタデータIPを含む。
var internalPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// EgressGuard はジオコーダーのように運用者が接続先を差し替えられる外部APIへの通信を、
// インターネット上のホストに限定する。
type EgressGuard struct{}

// NewEgressGuard は EgressGuard を生成する。
func NewEgressGuard() *EgressGuard {
	return &EgressGuard{}
}

// NewClient は内部アドレスへの接続を拒否する *http.Client を返す。
// 判定は名前解決後の接続先アドレスに対して行うため、DNSで内部アドレスを返すホストも拒否される。
func (g *EgressGuard) NewClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(egressSchemes...).
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

// ValidateEndpoint は設定された接続先URLを起動時に検査する。
// 名前解決は行わず、スキーム・ホストの有無・IPリテラルと localhost だけを見る。
func (g *EgressGuard) ValidateEndpoint(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !slices.Contains(egressSchemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}

	host := u.Hostname()
	switch {
	case host == "":
		return fmt.Errorf("URL %q has no host", rawURL)
	case strings.EqualFold(host, "localhost"):
		return fmt.Errorf("host %q is internal", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// ホスト名
		return nil
	}
	if isInternal(addr) {
		return fmt.Errorf("address %s is internal", addr)
	}
	return nil
}

func isInternal(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range internalPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
