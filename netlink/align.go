package netlink

// Netlink headers and attribute payloads are aligned to 4 byte boundaries.
const nlmsgAlignTo = 4

// nlmsgAlign rounds a length up to the netlink alignment boundary,
// equivalent to the kernel's NLMSG_ALIGN macro.
func nlmsgAlign(n int) int {
	return (n + nlmsgAlignTo - 1) & ^(nlmsgAlignTo - 1)
}

// nlaAlign rounds an attribute length up to the netlink alignment boundary,
// equivalent to the kernel's NLA_ALIGN macro.
func nlaAlign(n int) int {
	return (n + nlmsgAlignTo - 1) & ^(nlmsgAlignTo - 1)
}
