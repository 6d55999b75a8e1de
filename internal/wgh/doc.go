// Package wgh contains constants used to access WireGuard information
// using generic netlink.  The values are mirrored from the kernel's
// linux/wireguard.h UAPI header and must match it bit-for-bit.
package wgh
