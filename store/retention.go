package store

import (
	"strconv"
	"time"
)

// IsExpired reports whether a record with the given expires_at value is past
// its retention window at now. Zero means no expiry.
func IsExpired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && expiresAt <= now.Unix()
}

// liveFilterExpr is the filter expression excluding expired records.
// Records without a retention window have no expires_at attribute at all.
func liveFilterExpr() string {
	return "attribute_not_exists(#exp) OR #exp > :now"
}

// liveFilterNames returns the expression attribute names for liveFilterExpr.
func liveFilterNames() map[string]string {
	return map[string]string{"#exp": "expires_at"}
}

func nowAttr(now time.Time) string {
	return strconv.FormatInt(now.Unix(), 10)
}
