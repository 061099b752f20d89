package virt

import (
	"math/bits"
	"sync"

	"github.com/creinwar/freertos-xvisor-guest/plic"
)

// Additional PLIC registers the drivers do not use.
const (
	plicPending   = 0x001000
	plicThreshold = 0x200000
)

// PLIC models the platform-level interrupt controller for sources 1-31 and
// the single supervisor context the benchmark uses. Sources are level
// triggered: a source stays pending while its line is high, and a claimed
// source is not offered again until it is completed.
type PLIC struct {
	notify func(high bool)

	mu        sync.Mutex
	priority  [plic.MaxSource + 1]uint32
	enable    uint32
	threshold uint32
	level     uint32
	pending   uint32
	claimed   uint32
	claims    uint64
}

// NewPLIC returns a controller that calls notify whenever the existence of a
// claimable source changes.
func NewPLIC(notify func(high bool)) *PLIC {
	return &PLIC{notify: notify}
}

// SetLevel implements Line.
func (p *PLIC) SetLevel(src uint32, high bool) {
	if src == 0 || src > plic.MaxSource {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	bit := uint32(1) << src
	if high {
		p.level |= bit
		if p.claimed&bit == 0 {
			p.pending |= bit
		}
	} else {
		p.level &^= bit
		p.pending &^= bit
	}
	p.update()
}

// Read32 implements mmio.Bus.
func (p *PLIC) Read32(off uintptr) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case off < plicPending:
		if src := off / 4; src <= plic.MaxSource {
			return p.priority[src]
		}
	case off == plicPending:
		return p.pending
	case off == plic.ENABLE_BASE:
		return p.enable
	case off == plicThreshold:
		return p.threshold
	case off == plic.CLAIM_COMPLETE:
		return p.claim()
	}
	return 0
}

// Write32 implements mmio.Bus.
func (p *PLIC) Write32(off uintptr, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case off < plicPending:
		if src := off / 4; src > 0 && src <= plic.MaxSource {
			p.priority[src] = v
		}
	case off == plic.ENABLE_BASE:
		p.enable = v &^ 1 // source 0 does not exist
	case off == plicThreshold:
		p.threshold = v
	case off == plic.CLAIM_COMPLETE:
		p.complete(v)
		return
	default:
		return
	}
	p.update()
}

// Claims returns the number of successful claims.
func (p *PLIC) Claims() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claims
}

// best returns the claimable source with the highest priority, lowest id
// first on ties, or 0. p.mu must be held.
func (p *PLIC) best() uint32 {
	var id, prio uint32
	for cand := p.pending & p.enable; cand != 0; cand &= cand - 1 {
		src := uint32(bits.TrailingZeros32(cand))
		if pr := p.priority[src]; pr > p.threshold && pr > prio {
			id, prio = src, pr
		}
	}
	return id
}

// p.mu must be held.
func (p *PLIC) claim() uint32 {
	id := p.best()
	if id == plic.NoInterrupt {
		return id
	}
	bit := uint32(1) << id
	p.pending &^= bit
	p.claimed |= bit
	p.claims++
	p.update()
	return id
}

// p.mu must be held.
func (p *PLIC) complete(id uint32) {
	if id == 0 || id > plic.MaxSource {
		return
	}
	bit := uint32(1) << id
	if p.claimed&bit == 0 {
		return
	}
	p.claimed &^= bit
	if p.level&bit != 0 {
		p.pending |= bit
	}
	p.update()
}

// update tells the hart whether anything is claimable. p.mu must be held.
func (p *PLIC) update() {
	if p.notify != nil {
		p.notify(p.best() != plic.NoInterrupt)
	}
}
