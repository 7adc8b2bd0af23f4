package types

// NotificationKind discriminates the notification union.
type NotificationKind string

const (
	NotificationReaction NotificationKind = "reaction"
	NotificationComment  NotificationKind = "comment"
	NotificationMention  NotificationKind = "mention"
	NotificationMirror   NotificationKind = "mirror"
	NotificationQuote    NotificationKind = "quote"
	NotificationFollow   NotificationKind = "follow"
	NotificationCollect  NotificationKind = "collect"
)

// Kinds lists every notification kind. Consumption sites switch
// exhaustively over this set.
var Kinds = []NotificationKind{
	NotificationReaction,
	NotificationComment,
	NotificationMention,
	NotificationMirror,
	NotificationQuote,
	NotificationFollow,
	NotificationCollect,
}

// ProfileRef identifies an actor in the social graph.
type ProfileRef struct {
	ID          string `json:"id"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
}

// ContentRef points at the publication a notification acted upon.
type ContentRef struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet,omitempty"`
}

// NotificationItem is one entry in the notification feed. Items are
// immutable once cached; identity is unique within a cache.
type NotificationItem struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	CreatedAt int64            `json:"created_at,omitempty"`
	Actors    []ProfileRef     `json:"actors"`
	Content   *ContentRef      `json:"content,omitempty"`
}

// EventTime returns the item's event timestamp in unix milliseconds,
// or 0 when the kind aggregates batched events with no single time.
func (n NotificationItem) EventTime() int64 {
	switch n.Kind {
	case NotificationReaction, NotificationComment, NotificationMention,
		NotificationMirror, NotificationQuote:
		return n.CreatedAt
	case NotificationFollow, NotificationCollect:
		// Batched server-side; CreatedAt may be absent for aggregates.
		return n.CreatedAt
	default:
		return 0
	}
}

// PageInfo carries opaque pagination cursors from the feed.
type PageInfo struct {
	Next string `json:"next,omitempty"`
	Prev string `json:"prev,omitempty"`
}

// FetchedPage is one page of feed results.
type FetchedPage struct {
	Items    []NotificationItem `json:"items"`
	PageInfo PageInfo           `json:"page_info"`
}

// NotificationCache is the persisted, newest-first notification list
// plus the cursors of the outermost pages fetched so far.
type NotificationCache struct {
	Items    []NotificationItem `json:"items"`
	PageInfo PageInfo           `json:"page_info"`
}

// CompactMessage is the persistable projection of a network message.
// Read timestamps and latest-message snapshots use this type exclusively.
type CompactMessage struct {
	Timestamp int64  `json:"timestamp"`
	Topic     string `json:"topic"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
}

// Peer is the counterpart of a conversation: either a resolved profile
// or a bare wallet address with an optional human-readable alias.
type Peer struct {
	Profile *ProfileRef `json:"profile,omitempty"`
	Address string      `json:"address"`
	Alias   string      `json:"alias,omitempty"`
}

// Label returns the best display name available for the peer.
func (p Peer) Label() string {
	if p.Profile != nil {
		if p.Profile.DisplayName != "" {
			return p.Profile.DisplayName
		}
		if p.Profile.Handle != "" {
			return "@" + p.Profile.Handle
		}
	}
	if p.Alias != "" {
		return p.Alias
	}
	return ShortAddress(p.Address)
}

// ShortAddress renders a wallet address as 0x1234…abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// Thread is a conversation with a peer plus locally-derived metadata.
type Thread struct {
	Topic  string          `json:"topic"`
	Peer   Peer            `json:"peer"`
	Latest *CompactMessage `json:"latest,omitempty"`
	Unread bool            `json:"unread"`
}

// ReadTimestampMap maps a topic to the unix-milli time of the last
// message marked read. Updates are monotonic per key.
type ReadTimestampMap map[string]int64
