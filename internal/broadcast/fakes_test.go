package broadcast

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Er1one/telegram-bot-template/internal/provider"
	"github.com/Er1one/telegram-bot-template/internal/ratelimit"
)

type pageCall struct {
	after  int64
	filter Filter
	limit  int
	size   int
}

type fakeSource struct {
	mu         sync.Mutex
	recipients map[int64]*Recipient
	pageCalls  []pageCall
	banCalls   []int64

	countFn     func(ctx context.Context, filter Filter) (int64, error)
	pageFn      func(ctx context.Context, after int64, filter Filter, limit int) ([]Recipient, error)
	setBannedFn func(ctx context.Context, id int64, banned bool) error
}

func newFakeSource(recipients ...Recipient) *fakeSource {
	s := &fakeSource{recipients: make(map[int64]*Recipient, len(recipients))}
	for _, r := range recipients {
		r := r
		s.recipients[r.ID] = &r
	}
	return s
}

func recipientRange(from, to int64) []Recipient {
	out := make([]Recipient, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, Recipient{ID: id})
	}
	return out
}

func (s *fakeSource) Count(ctx context.Context, filter Filter) (int64, error) {
	if s.countFn != nil {
		return s.countFn(ctx, filter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.recipients {
		if filter.IncludeBanned || !r.Banned {
			n++
		}
	}
	return n, nil
}

func (s *fakeSource) Page(ctx context.Context, after int64, filter Filter, limit int) ([]Recipient, error) {
	if s.pageFn != nil {
		return s.pageFn(ctx, after, filter, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.recipients))
	for id, r := range s.recipients {
		if id > after && (filter.IncludeBanned || !r.Banned) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	page := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		page = append(page, *s.recipients[id])
	}

	s.pageCalls = append(s.pageCalls, pageCall{after: after, filter: filter, limit: limit, size: len(page)})
	return page, nil
}

func (s *fakeSource) SetBanned(ctx context.Context, id int64, banned bool) error {
	s.mu.Lock()
	s.banCalls = append(s.banCalls, id)
	s.mu.Unlock()

	if s.setBannedFn != nil {
		return s.setBannedFn(ctx, id, banned)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipients[id]
	if !ok {
		r = &Recipient{ID: id}
		s.recipients[id] = r
	}
	r.Banned = banned
	return nil
}

func (s *fakeSource) isBanned(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipients[id]
	return ok && r.Banned
}

func (s *fakeSource) pages() []pageCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pageCall(nil), s.pageCalls...)
}

func (s *fakeSource) bans() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.banCalls...)
}

// recordingSender answers from results by recipient id, defaulting to OK.
type recordingSender struct {
	mu      sync.Mutex
	sent    map[int64]int
	results map[int64]provider.Result
	sendFn  func(ctx context.Context, recipientID int64) provider.Result
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		sent:    make(map[int64]int),
		results: make(map[int64]provider.Result),
	}
}

func (s *recordingSender) Send(ctx context.Context, recipientID int64) provider.Result {
	s.mu.Lock()
	s.sent[recipientID]++
	result, ok := s.results[recipientID]
	s.mu.Unlock()

	if s.sendFn != nil {
		return s.sendFn(ctx, recipientID)
	}
	if ok {
		return result
	}
	return provider.OK()
}

func (s *recordingSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.sent {
		n += c
	}
	return n
}

func (s *recordingSender) sentTo(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id]
}

type countingLimiter struct {
	acquired atomic.Int64
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.acquired.Add(1)
	return nil
}

func newTestDispatcher(source RecipientSource) (*Dispatcher, *countingLimiter) {
	limiter := &countingLimiter{}
	d := NewDispatcher(source, nil)
	d.newLimiter = func(int) ratelimit.Limiter { return limiter }
	return d, limiter
}
