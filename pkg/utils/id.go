package utils

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// idSeq breaks ties between messages created in the same nanosecond so
// message ids stay strictly increasing within a process.
var idSeq uint64

// GenMessageID returns a sortable message id. Lexicographic order of ids
// equals creation order: the id embeds a zero-padded UTC nanosecond
// timestamp followed by a zero-padded sequence number.
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("m%020d-%06d", n, s%1000000)
}

// PairConversationID derives the stable conversation id for an unordered
// pair of participant ids. Both orders of arguments produce the same id.
func PairConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "~" + b
}

// SplitConversationID returns the two participants encoded in a pair
// conversation id, or false if the id is not in pair form.
func SplitConversationID(id string) (string, string, bool) {
	i := strings.Index(id, "~")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}
