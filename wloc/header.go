package wloc

// Fields of the preamble locationd sends ahead of every request.
const (
	Locale     = "en_US"
	Identifier = "com.apple.locationd"
	Version    = "8.4.1.12H321"
)

// HeaderLen is the size of the fixed request preamble.
const HeaderLen = 50

// headerBytes is the request preamble. Each string is preceded by its
// big-endian uint16 length. The service silently changes behaviour if any
// byte differs, so it is kept as a literal.
var headerBytes = [HeaderLen]byte{
	0x00, 0x01, // sequence marker
	0x00, 0x05, // len(Locale)
	'e', 'n', '_', 'U', 'S',
	0x00, 0x13, // len(Identifier)
	'c', 'o', 'm', '.', 'a', 'p', 'p', 'l', 'e', '.',
	'l', 'o', 'c', 'a', 't', 'i', 'o', 'n', 'd',
	0x00, 0x0c, // len(Version)
	'8', '.', '4', '.', '1', '.', '1', '2', 'H', '3', '2', '1',
	0x00, 0x00,
	0x00, 0x01, // sequence marker
	0x00, 0x00,
}

// Header returns a copy of the fixed request preamble.
func Header() []byte {
	h := headerBytes
	return h[:]
}
