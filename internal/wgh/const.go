package wgh

// Generic netlink family identification and key size.
const (
	GenlName    = "wireguard"
	GenlVersion = 0x1

	KeyLen = 0x20
)

// WireGuard generic netlink commands (enum wg_cmd).
const (
	CmdGetDevice = 0x0
	CmdSetDevice = 0x1
)

// Device attribute types (enum wgdevice_attribute).
const (
	DeviceAUnspec     = 0x0
	DeviceAIfindex    = 0x1
	DeviceAIfname     = 0x2
	DeviceAPrivateKey = 0x3
	DeviceAPublicKey  = 0x4
	DeviceAFlags      = 0x5
	DeviceAListenPort = 0x6
	DeviceAFwmark     = 0x7
	DeviceAPeers      = 0x8
)

// Device configuration flags (enum wgdevice_flag).
const (
	DeviceFReplacePeers = 0x1
)

// Peer attribute types (enum wgpeer_attribute).
const (
	PeerAUnspec                      = 0x0
	PeerAPublicKey                   = 0x1
	PeerAPresharedKey                = 0x2
	PeerAFlags                       = 0x3
	PeerAEndpoint                    = 0x4
	PeerAPersistentKeepaliveInterval = 0x5
	PeerALastHandshakeTime           = 0x6
	PeerARxBytes                     = 0x7
	PeerATxBytes                     = 0x8
	PeerAAllowedips                  = 0x9
	PeerAProtocolVersion             = 0xa
)

// Peer configuration flags (enum wgpeer_flag).
const (
	PeerFRemoveMe          = 0x1
	PeerFReplaceAllowedips = 0x2
	PeerFUpdateOnly        = 0x4
)

// Allowed IP attribute types (enum wgallowedip_attribute).
const (
	AllowedipAUnspec   = 0x0
	AllowedipAFamily   = 0x1
	AllowedipAIpaddr   = 0x2
	AllowedipACidrMask = 0x3
)
