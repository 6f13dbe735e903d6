package crawler

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
)

// proxyPool 轮换静态代理列表并记录失败项；全部失败后清空失败集重来。
// 作用域限定在单个抓取器实例内。
type proxyPool struct {
	mu      sync.Mutex
	proxies []*url.URL
	idx     int
	current *url.URL
	failed  map[string]struct{}
	log     *logrus.Entry
}

func newProxyPool(raw []string) *proxyPool {
	p := &proxyPool{
		failed: make(map[string]struct{}),
		log:    logrus.WithField("component", "proxy-pool"),
	}
	for _, s := range raw {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			p.log.Warnf("skip invalid proxy %q", s)
			continue
		}
		p.proxies = append(p.proxies, u)
	}
	return p
}

// proxyFunc 供 http.Transport 使用；无可用代理时直连。
func (p *proxyPool) proxyFunc(_ *http.Request) (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil, nil
	}

	available := p.availableLocked()
	if len(available) == 0 {
		p.failed = make(map[string]struct{})
		available = p.proxies
	}

	u := available[p.idx%len(available)]
	p.idx++
	p.current = u
	return u, nil
}

// markCurrentFailed 把最近一次使用的代理移出轮换。
func (p *proxyPool) markCurrentFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	p.failed[p.current.String()] = struct{}{}
	p.log.Infof("proxy marked failed: %s", p.current.Host)
	p.current = nil
}

func (p *proxyPool) availableLocked() []*url.URL {
	out := make([]*url.URL, 0, len(p.proxies))
	for _, u := range p.proxies {
		if _, bad := p.failed[u.String()]; !bad {
			out = append(out, u)
		}
	}
	return out
}
