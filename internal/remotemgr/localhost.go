package remotemgr

import (
	"context"
	"net"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

// LocalHosts decides whether a host name refers to this machine. Resolution
// results are cached.
type LocalHosts struct {
	cache    *lru.Cache[string, bool]
	resolve  func(ctx context.Context, host string) ([]string, error)
	addrs    func() ([]net.Addr, error)
	hostname func() (string, error)
}

// NewLocalHosts returns a detector caching up to size answers.
func NewLocalHosts(size int) (*LocalHosts, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}
	return &LocalHosts{
		cache:    cache,
		resolve:  net.DefaultResolver.LookupHost,
		addrs:    net.InterfaceAddrs,
		hostname: os.Hostname,
	}, nil
}

// IsLocal reports whether host is a loopback name or address, this machine's
// hostname, or a name resolving to one of its interface addresses.
func (l *LocalHosts) IsLocal(ctx context.Context, host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if v, ok := l.cache.Get(host); ok {
		return v
	}
	local := l.check(ctx, host)
	l.cache.Add(host, local)
	return local
}

func (l *LocalHosts) check(ctx context.Context, host string) bool {
	if host == "localhost" || strings.HasPrefix(host, "localhost.") {
		return true
	}
	if name, err := l.hostname(); err == nil {
		name = strings.ToLower(name)
		if host == name || host == shortName(name) {
			return true
		}
	}
	local := l.localIPs()
	if ip := net.ParseIP(host); ip != nil {
		return isLocalIP(ip, local)
	}
	addrs, err := l.resolve(ctx, host)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isLocalIP(ip, local) {
			return true
		}
	}
	return false
}

func (l *LocalHosts) localIPs() []net.IP {
	addrs, err := l.addrs()
	if err != nil {
		return nil
	}
	var ips []net.IP
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			ips = append(ips, v.IP)
		case *net.IPAddr:
			ips = append(ips, v.IP)
		}
	}
	return ips
}

// Filter splits hosts into remote and local ones, preserving order.
func (l *LocalHosts) Filter(ctx context.Context, hosts []string) (remoteHosts, localHosts []string) {
	for _, h := range hosts {
		if l.IsLocal(ctx, h) {
			localHosts = append(localHosts, h)
			continue
		}
		remoteHosts = append(remoteHosts, h)
	}
	return remoteHosts, localHosts
}

func isLocalIP(ip net.IP, local []net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	for _, l := range local {
		if l.Equal(ip) {
			return true
		}
	}
	return false
}

func shortName(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
