package rtnl

// ifAFUnspec and iflaIfname mirror iface's own unexported constants of
// the same name: the facade needs them to shape a bare link_get/link_del
// request (a full Link is not available until the reply is parsed), so
// they are declared again here rather than exported from iface for two
// names' sake.
const (
	ifAFUnspec = 0
	iflaIfname = 3
)
