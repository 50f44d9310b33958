package transport

import (
	"errors"
	"fmt"
)

// prefixLen is the width of the ASCII length prefix on fetch requests. The
// localizer reads exactly this many bytes and parses them as a decimal
// payload length, so the prefix is left-padded with spaces.
const prefixLen = 4

// maxFramedPayload is the largest payload representable in a 4-digit
// decimal prefix.
const maxFramedPayload = 9999

// ErrPayloadTooLarge is returned by EncodeFrame when the payload does not
// fit the fixed-width length prefix.
var ErrPayloadTooLarge = errors.New("transport: payload exceeds framed size limit")

// EncodeFrame prepends the fixed-width length prefix to payload. Fetch
// requests are framed this way so the receiving side can read arbitrarily
// large JSON reliably over the stream; init requests are small and are sent
// unframed.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > maxFramedPayload {
		return nil, ErrPayloadTooLarge
	}
	framed := make([]byte, 0, prefixLen+len(payload))
	framed = append(framed, fmt.Sprintf("%*d", prefixLen, len(payload))...)
	return append(framed, payload...), nil
}
