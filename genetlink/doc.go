// Package genetlink implements generic netlink interactions and data types:
// the generic netlink message header, family resolution through the generic
// netlink controller, and a connection type layered on package netlink.
package genetlink
