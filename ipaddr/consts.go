package ipaddr

// IFA_* attribute-type constants from the kernel's linux/if_addr.h uapi
// numbering, hand-declared for the same reason documented in
// wire/rtm.go and iface/consts.go.
const (
	ifaAddress   = 1
	ifaLocal     = 2
	ifaLabel     = 3
	ifaBroadcast = 4
	ifaAnycast   = 5
	ifaCacheinfo = 6
	ifaMulticast = 7
	ifaFlags     = 8
)
