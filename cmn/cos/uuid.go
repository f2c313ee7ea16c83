package cos

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/teris-io/shortid"
)

// Alphabet for generating IDs, same shape as shortid.DEFAULT_ABC.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

const LenShortID = 9 // as per https://github.com/teris-io/shortid#id-length

var (
	sid     *shortid.Shortid
	sidOnce sync.Once
	rtie    atomic.Uint32
)

func initShortID() {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, uint64(rand.Int63()))
}

// GenUUID generates a short, practically-unique, printable id — used for
// trace/span ids originated by splice/authctx when the host supplies none
// (see spec.md's Request context).
func GenUUID() string {
	sidOnce.Do(initShortID)
	uuid := sid.MustGenerate()
	var h, t string
	if !isAlpha(uuid[0]) {
		tie := int(rtie.Add(1))
		h = string(rune('A' + tie%26))
	}
	if c := uuid[len(uuid)-1]; c == '-' || c == '_' {
		tie := int(rtie.Add(1))
		t = string(rune('a' + tie%26))
	}
	return h + uuid + t
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsValidUUID reports whether s looks like a GenUUID-produced id.
func IsValidUUID(s string) bool {
	if len(s) < LenShortID {
		return false
	}
	for i := range s {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}
