package httpapi

import (
	"sync"

	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/session"
)

const feedCapacity = 128

// FeedItem is a numbered notice as served by GET /notices.
type FeedItem struct {
	Seq      int64  `json:"seq"`
	Cue      string `json:"cue,omitempty"`
	Toast    string `json:"toast,omitempty"`
	ToastKey string `json:"toast_key,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Winner   string `json:"winner,omitempty"`
}

// Feed keeps the latest session notices for polling clients.
type Feed struct {
	mu    sync.Mutex
	next  int64
	items []FeedItem
}

func NewFeed() *Feed { return &Feed{next: 1} }

func (f *Feed) Notify(n session.Notice) {
	item := FeedItem{
		Cue:      string(n.Cue),
		Toast:    n.Toast,
		ToastKey: n.ToastKey,
		Phase:    string(n.Phase),
	}
	if n.Terminal != nil {
		item.Reason = string(n.Terminal.Reason)
		item.Winner = domain.ColorName(n.Terminal.Winner)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item.Seq = f.next
	f.next++
	f.items = append(f.items, item)
	if len(f.items) > feedCapacity {
		f.items = append([]FeedItem(nil), f.items[len(f.items)-feedCapacity:]...)
	}
}

// Since returns items with Seq > seq and the cursor to poll with next.
func (f *Feed) Since(seq int64) ([]FeedItem, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FeedItem, 0)
	for _, it := range f.items {
		if it.Seq > seq {
			out = append(out, it)
		}
	}
	return out, f.next - 1
}

var _ session.Listener = (*Feed)(nil)
