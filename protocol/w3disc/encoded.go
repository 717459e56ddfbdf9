package w3disc

// DecodeEncodedString reverses the obfuscation WC3 applies to the Encoded
// blob of a QueryForGamesResponse. The encoding strips zero bytes from the
// payload: every 8th byte is a bit mask, and for the following seven bytes
// a cleared mask bit means the byte was incremented by one on encode.
//
// The tunnel never re-encodes; this decoder exists for diagnostics.
func DecodeEncodedString(encoded []byte) []byte {
	decoded := make([]byte, 0, len(encoded))

	var mask byte
	for i, b := range encoded {
		if i%8 == 0 {
			mask = b
			continue
		}
		if mask&(1<<(i%8)) == 0 {
			decoded = append(decoded, b-1)
		} else {
			decoded = append(decoded, b)
		}
	}

	return decoded
}
