package iface

// IFLA_* attribute-type constants from the kernel's linux/if_link.h uapi
// numbering. golang.org/x/sys/unix does not export the nested INFO_KIND/
// INFO_DATA/BR_*/XDP_* namespaces under these names, so the full set
// used here is declared directly.
const (
	iflaAddress      = 1
	iflaBroadcast    = 2
	iflaIfname       = 3
	iflaMTU          = 4
	iflaLink         = 5
	iflaStats        = 7
	iflaMaster       = 10
	iflaTxqlen       = 13
	iflaOperstate    = 16
	iflaLinkinfo     = 18
	iflaNetNSPid     = 19
	iflaIfalias      = 20
	iflaStats64      = 23
	iflaVfinfoList   = 22
	iflaGroup        = 27
	iflaNetNSFd      = 28
	iflaNumTxQueues  = 31
	iflaNumRxQueues  = 32
	iflaPhysSwitchID = 36
	iflaLinkNetnsid  = 37
	iflaGsoMaxSegs   = 40
	iflaGsoMaxSize   = 41
	iflaXdp          = 43
	iflaGroMaxSize   = 58
	iflaProtinfo     = 12

	iflaInfoKind      = 1
	iflaInfoData      = 2
	iflaInfoSlaveKind = 4
	iflaInfoSlaveData = 5

	iflaBrHelloTime     = 2
	iflaBrAgeingTime    = 4
	iflaBrVlanFiltering = 7
	iflaBrMcastSnooping = 23

	vethInfoPeer = 1

	iflaXdpFd       = 1
	iflaXdpAttached = 2
	iflaXdpFlags    = 3
	iflaXdpProgID   = 4

	ifAFUnspec = 0
)

// Link header flags (ifi_flags). Only the handful of values this engine
// sets or reads are named.
const (
	iffUp = 0x1
)
