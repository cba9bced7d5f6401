package route

// RTA_* attribute-type constants and RTM/rtmsg field values from the
// kernel's linux/rtnetlink.h uapi numbering, hand-declared for the same
// reason documented in wire/rtm.go and iface/consts.go.
const (
	rtaDst       = 1
	rtaSrc       = 2
	rtaIif       = 3
	rtaOif       = 4
	rtaGateway   = 5
	rtaPriority  = 6
	rtaPrefsrc   = 7
	rtaMetrics   = 8
	rtaMultipath = 9
	rtaProtoinfo = 10
	rtaFlow      = 11
	rtaCacheinfo = 12
	rtaTable     = 15
)

// RT_SCOPE_* and RT_TABLE_* values this package sets by default.
const (
	rtScopeUniverse = 0
	rtTableMain     = 254
)
