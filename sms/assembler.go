package sms

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultPartTTL bounds how long the parts of an incomplete concatenated
// message are held.
const DefaultPartTTL = 10 * time.Minute

type groupKey struct {
	sender string
	ref    int
	total  int
}

type group struct {
	parts map[int]*Message
	first time.Time
}

// Assembler joins the parts of concatenated messages. It is safe for
// concurrent use.
type Assembler struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	groups map[groupKey]*group
}

// NewAssembler returns an Assembler expiring incomplete groups after ttl, or
// DefaultPartTTL when ttl is not positive.
func NewAssembler(ttl time.Duration, now func() time.Time) *Assembler {
	if ttl <= 0 {
		ttl = DefaultPartTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{ttl: ttl, now: now, groups: map[groupKey]*group{}}
}

// Add takes one message. It returns the complete message and true when m is
// not a part or completes its group, and nil and false while parts are
// missing. A repeated part replaces the earlier copy.
func (a *Assembler) Add(m *Message) (*Message, bool) {
	if m.Concat == nil || m.Concat.Total <= 1 {
		return m, true
	}
	k := groupKey{sender: m.Sender, ref: m.Concat.Ref, total: m.Concat.Total}

	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.groups[k]
	if !ok {
		g = &group{parts: map[int]*Message{}, first: a.now()}
		a.groups[k] = g
	}
	g.parts[m.Concat.Seq] = m
	if len(g.parts) < k.total {
		return nil, false
	}
	delete(a.groups, k)
	return join(g, false), true
}

// Expire removes groups older than the TTL and returns what was received of
// them, marked Partial.
func (a *Assembler) Expire() []*Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Message
	now := a.now()
	for k, g := range a.groups {
		if now.Sub(g.first) < a.ttl {
			continue
		}
		delete(a.groups, k)
		out = append(out, join(g, true))
	}
	slices.SortFunc(out, func(x, y *Message) int { return x.Time.Compare(y.Time) })
	return out
}

// Pending reports the number of incomplete groups.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func join(g *group, partial bool) *Message {
	seqs := make([]int, 0, len(g.parts))
	for s := range g.parts {
		seqs = append(seqs, s)
	}
	slices.Sort(seqs)

	head := g.parts[seqs[0]]
	out := *head
	out.Concat = nil
	out.Partial = partial
	out.Parts = nil

	var sb strings.Builder
	for _, s := range seqs {
		p := g.parts[s]
		sb.WriteString(p.Text)
		if p.Stored {
			out.Parts = append(out.Parts, p.Index)
		}
	}
	out.Text = sb.String()
	return &out
}
