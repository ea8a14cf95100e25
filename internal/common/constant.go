package common

// Header names carried on every sync request.
const (
	AuthorizationHeaderName = "Authorization"
	DeviceIDHeaderName      = "X-Device-ID"
	BearerPrefix            = "Bearer "
)

// WipeByteArray overwrites b with zeros. Used for secrets read from the
// terminal once they have been copied into storage.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
