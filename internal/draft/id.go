package draft

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// idLen is the hex length of a draft id. 12 hex chars = 48 bits; with the
// random salt mixed in, collisions among live drafts are overwhelmingly
// unlikely but, being a truncation, not impossible.
const idLen = 12

// MintID mints an opaque draft id from the owner, topic and instant. Two
// calls with identical inputs still differ because of the random salt, and
// the token never contains ':' so it is safe inside callback data.
func MintID(ownerID int64, topic string, now time.Time) string {
	var salt [8]byte
	_, _ = rand.Read(salt[:])

	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ownerID))
	h.Write(buf[:])
	h.Write([]byte(topic))
	binary.BigEndian.PutUint64(buf[:], uint64(now.UnixNano()))
	h.Write(buf[:])
	h.Write(salt[:])

	return hex.EncodeToString(h.Sum(nil))[:idLen]
}
