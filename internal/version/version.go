// ABOUTME: Product and version constants
// ABOUTME: Reported in handshakes, get_version replies and --version output
package version

// Version is overridden at build time with -ldflags "-X ...version.Version=x.y.z"
var Version = "0.1.0"

const (
	Product      = "Sendspin Deck"
	Manufacturer = "Sendspin"
)

// String is the one-line version banner
func String() string {
	return Product + " " + Version
}
