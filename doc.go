// Package wgnetlink enables control of WireGuard devices using the kernel's
// generic netlink interface.
//
// For more information on WireGuard, please see https://www.wireguard.com/.
package wgnetlink
