package resolver

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Strategy selects how the pool rotates across healthy instances.
type Strategy string

// Pool selection strategies.
const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
)

// minCooldown is the floor for the failure cooldown window.
const minCooldown = 60 * time.Second

// Pool tracks mirror instances and their health. A failed instance is
// excluded from selection until its cooldown expires. Safe for concurrent
// use; parallel resolutions observe each other's cooldowns.
type Pool struct {
	mu        sync.Mutex
	instances []string
	cooldown  map[string]time.Time
	cursor    int
	strategy  Strategy
	ttl       time.Duration
	maxPerReq int
	rng       *rand.Rand
	now       func() time.Time
}

// PoolConfig configures a mirror pool.
type PoolConfig struct {
	Instances     []string
	Strategy      Strategy
	Cooldown      time.Duration
	MaxPerRequest int
}

// NewPool builds a Pool. Cooldowns below the floor are raised to it, and
// an unset MaxPerRequest means every instance may be tried.
func NewPool(cfg PoolConfig) *Pool {
	ttl := cfg.Cooldown
	if ttl < minCooldown {
		ttl = minCooldown
	}
	maxPerReq := cfg.MaxPerRequest
	if maxPerReq <= 0 || maxPerReq > len(cfg.Instances) {
		maxPerReq = len(cfg.Instances)
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyRoundRobin
	}

	instances := make([]string, 0, len(cfg.Instances))
	for _, in := range cfg.Instances {
		if in = strings.TrimRight(strings.TrimSpace(in), "/"); in != "" {
			instances = append(instances, in)
		}
	}

	return &Pool{
		instances: instances,
		cooldown:  map[string]time.Time{},
		strategy:  strategy,
		ttl:       ttl,
		maxPerReq: maxPerReq,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// MaxPerRequest reports how many instances one resolution may try.
func (p *Pool) MaxPerRequest() int {
	return p.maxPerReq
}

// Pick returns the next selectable instance, skipping cooled-down
// instances and anything in exclude. ok is false when nothing remains.
func (p *Pool) Pick(exclude map[string]bool) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := p.selectable(exclude)
	if len(candidates) == 0 {
		return "", false
	}
	if p.strategy == StrategyRandom {
		return candidates[p.rng.Intn(len(candidates))], true
	}

	// Round robin walks the full list so the cursor position is stable
	// regardless of which instances are currently cooled.
	for range p.instances {
		in := p.instances[p.cursor%len(p.instances)]
		p.cursor++
		for _, c := range candidates {
			if c == in {
				return in, true
			}
		}
	}
	return candidates[0], true
}

// MarkFailed puts the instance in cooldown.
func (p *Pool) MarkFailed(instance string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldown[instance] = p.now().Add(p.ttl)
}

// Healthy reports whether the instance is currently selectable.
func (p *Pool) Healthy(instance string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().After(p.cooldown[instance])
}

func (p *Pool) selectable(exclude map[string]bool) []string {
	now := p.now()
	var out []string
	for _, in := range p.instances {
		if exclude[in] {
			continue
		}
		if until, cooled := p.cooldown[in]; cooled && now.Before(until) {
			continue
		}
		out = append(out, in)
	}
	return out
}
