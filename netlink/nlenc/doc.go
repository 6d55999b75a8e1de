// Package nlenc implements encoding and decoding functions for netlink
// messages and attributes.
package nlenc
