package crawler

import "testing"

func TestProxyPool_EmptyMeansDirect(t *testing.T) {
	p := newProxyPool(nil)

	u, err := p.proxyFunc(nil)
	if err != nil || u != nil {
		t.Fatalf("empty pool should mean direct connection, got %v, %v", u, err)
	}
	p.markCurrentFailed()
}

func TestProxyPool_Rotation(t *testing.T) {
	p := newProxyPool([]string{"http://p1:8080", "http://p2:8080"})

	u1, _ := p.proxyFunc(nil)
	u2, _ := p.proxyFunc(nil)
	if u1.Host == u2.Host {
		t.Fatalf("expected rotation, got %s twice", u1.Host)
	}
}

func TestProxyPool_FailedRemovedThenReset(t *testing.T) {
	p := newProxyPool([]string{"http://p1:8080", "http://p2:8080"})

	u, _ := p.proxyFunc(nil)
	p.markCurrentFailed()

	// 失败的代理退出轮换。
	for i := 0; i < 4; i++ {
		next, _ := p.proxyFunc(nil)
		if next.Host == u.Host {
			t.Fatalf("failed proxy %s still in rotation", u.Host)
		}
	}

	// 剩下的也失败后，失败集清空重来。
	next, _ := p.proxyFunc(nil)
	_ = next
	p.markCurrentFailed()

	if u2, _ := p.proxyFunc(nil); u2 == nil {
		t.Fatal("pool should reset after exhausting all proxies")
	}
}

func TestProxyPool_InvalidEntriesSkipped(t *testing.T) {
	p := newProxyPool([]string{"://bad", "", "http://ok:8080"})
	if len(p.proxies) != 1 {
		t.Fatalf("expected 1 valid proxy, got %d", len(p.proxies))
	}
}
