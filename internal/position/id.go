package position

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/jxskiss/base62"
)

// NewID mints an opaque position id: millisecond timestamp plus four random
// bytes, base62 encoded. Sortable by creation time and short enough for chat
// messages and store keys.
func NewID() string {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixMilli()))
	if _, err := rand.Read(buf[8:]); err != nil {
		// Fall back to nanosecond entropy; collisions are checked by the registry.
		binary.BigEndian.PutUint32(buf[8:], uint32(time.Now().UnixNano()))
	}
	return base62.EncodeToString(buf)
}
