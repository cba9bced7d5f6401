package wire

// RTM_* message type constants, declared from the kernel's
// linux/rtnetlink.h uapi numbering.
const (
	RTMNewLink  = 16
	RTMDelLink  = 17
	RTMGetLink  = 18
	RTMSetLink  = 19
	RTMNewAddr  = 20
	RTMDelAddr  = 21
	RTMGetAddr  = 22
	RTMNewRoute = 24
	RTMDelRoute = 25
	RTMGetRoute = 26
)
