package notify

import (
	"strconv"

	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// Badge renders the unread count shown on the extension icon: the
// number of cached items newer than lastOpened, "99+" past 99, and the
// empty string (hidden) when lastOpened is unknown or nothing is new.
func Badge(cache *types.NotificationCache, lastOpened int64) string {
	if cache == nil || lastOpened == 0 {
		return ""
	}
	count := 0
	for _, item := range cache.Items {
		if item.EventTime() > lastOpened {
			count++
		}
	}
	if count == 0 {
		return ""
	}
	if count > 99 {
		return "99+"
	}
	return strconv.Itoa(count)
}
