package knol

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/conorfennell/kindlenotes/internal/domain"
)

// maxSaltAttempts bounds how many salted hashes are tried after a collision.
const maxSaltAttempts = 10

var now = time.Now

// Hash returns the base64 encoded MD5 digest of s. Existing documents carry
// hashes in this form, so it must stay stable.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ContentHash returns Hash(content) unless that value is already taken, in
// which case the content is salted with a timestamp and hashed again.
func ContentHash(content string, existing map[string]struct{}) (string, error) {
	return contentHash(content, existing, func(attempt int) string {
		return strconv.FormatInt(now().UnixNano()+int64(attempt), 10)
	})
}

// ImportHash derives the identity of an imported highlight. The source's own
// per-item id is preferred because highlighted text can change. Collisions
// are salted with the occurrence number, so re-importing the same notes in
// the same order yields the same hashes.
func ImportHash(sourceID, content string, existing map[string]struct{}) (string, error) {
	key := content
	if sourceID != "" {
		key = sourceID
	}
	return contentHash(key, existing, func(attempt int) string {
		return "#" + strconv.Itoa(attempt+1)
	})
}

func contentHash(content string, existing map[string]struct{}, salt func(attempt int) string) (string, error) {
	candidate := content
	for attempt := 0; attempt <= maxSaltAttempts; attempt++ {
		hash := Hash(candidate)
		if _, taken := existing[hash]; !taken {
			return hash, nil
		}
		candidate = content + salt(attempt)
	}
	return "", fmt.Errorf("%w: after %d salted attempts", domain.ErrHashExhausted, maxSaltAttempts)
}
