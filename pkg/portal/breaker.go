package portal

import (
	"sync"
	"time"
)

// breaker suspends fetching from a broker host after consecutive fetch
// failures. doWithRetry absorbs transient blips; the breaker covers a
// portal that is down outright, where every attempt burns rate budget
// and stalls the ingestion worker holding the lead.
type breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu    sync.Mutex
	hosts map[string]*hostState
}

type hostState struct {
	failures    int
	suspendedAt time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		hosts:     make(map[string]*hostState),
	}
}

// allow reports whether the host may be fetched. A suspended host admits
// one probe per cooldown interval; the probe's outcome decides whether
// the suspension lifts.
func (b *breaker) allow(host string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.hosts[host]
	if !ok || h.failures < b.threshold {
		return true
	}
	if b.now().Sub(h.suspendedAt) >= b.cooldown {
		// Claim the probe slot so concurrent callers do not all pile on.
		h.suspendedAt = b.now()
		return true
	}
	return false
}

// record feeds a fetch outcome back. Success clears the host entirely;
// a failure past the threshold starts (or extends) the suspension.
func (b *breaker) record(host string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		delete(b.hosts, host)
		return
	}

	h, ok := b.hosts[host]
	if !ok {
		h = &hostState{}
		b.hosts[host] = h
	}
	h.failures++
	if h.failures >= b.threshold {
		h.suspendedAt = b.now()
	}
}
