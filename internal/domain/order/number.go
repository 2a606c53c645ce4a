package order

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newOrderNumber returns a human-readable order number such as
// ORD-482913-K3ZQ0A: the last six digits of the Unix millisecond clock and
// six random base-36 characters.
func newOrderNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}

	var b strings.Builder
	b.Grow(6)
	for range 6 {
		b.WriteByte(numberAlphabet[rand.IntN(len(numberAlphabet))])
	}
	return fmt.Sprintf("ORD-%s-%s", ms, b.String())
}
