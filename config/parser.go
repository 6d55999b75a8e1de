// Package config parses WireGuard configuration files in the INI-like
// format accepted by wg(8) setconf.
package config

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wgkit/wgnetlink/wgtypes"
)

// Format reference: https://git.zx2c4.com/WireGuard/about/src/tools/man/wg.8

type parseError struct {
	message string
	line    int
}

func (p parseError) Error() string {
	return fmt.Sprintf("Parse error: %s, (line %d)", p.message, p.line)
}

const (
	sectionInterface = "Interface"
	sectionPeer      = "Peer"
	sectionEmpty     = ""
)

var (
	commentPattern  = regexp.MustCompile(`#.*$`)
	sectionPattern  = regexp.MustCompile(`\[(?P<section>\w+)\]`)
	keyValuePattern = regexp.MustCompile(`^\s*(?P<key>\w+)\s*=\s*(?P<value>.+?)\s*$`)
)

func matchSectionHeader(s string) (string, bool) {
	if !sectionPattern.MatchString(s) {
		return "", false
	}

	return sectionPattern.ReplaceAllString(s, "${section}"), true
}

type pair struct {
	key   string
	value string
}

func matchKeyValuePair(s string) (pair, bool) {
	if !keyValuePattern.MatchString(s) {
		return pair{}, false
	}

	return pair{
		key:   keyValuePattern.ReplaceAllString(s, "${key}"),
		value: keyValuePattern.ReplaceAllString(s, "${value}"),
	}, true
}

// ParseConfig parses a wg(8) setconf configuration from in, producing a
// device configuration which can be applied with ConfigureDevice.
func ParseConfig(in io.Reader) (*wgtypes.Config, error) {
	sc := bufio.NewScanner(in)

	var cfg *wgtypes.Config
	peers := make([]wgtypes.PeerConfig, 0, 10)

	currentSec := sectionEmpty
	var currentPeer *wgtypes.PeerConfig

	for lineNum := 1; sc.Scan(); lineNum++ {
		line := commentPattern.ReplaceAllString(sc.Text(), "")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if sec, ok := matchSectionHeader(line); ok {
			switch sec {
			case sectionInterface:
				if cfg != nil {
					return nil, parseError{message: "duplicated Interface section", line: lineNum}
				}
				cfg = &wgtypes.Config{}
			case sectionPeer:
				if currentPeer != nil {
					peers = append(peers, *currentPeer)
				}
				currentPeer = &wgtypes.PeerConfig{}
			default:
				return nil, parseError{message: fmt.Sprintf("unknown section: %s", sec), line: lineNum}
			}

			currentSec = sec
			continue
		}

		if p, ok := matchKeyValuePair(line); ok {
			var perr *parseError
			switch currentSec {
			case sectionEmpty:
				return nil, parseError{message: "key-value pair outside of a section", line: lineNum}
			case sectionInterface:
				perr = parseInterfaceField(cfg, p)
			case sectionPeer:
				perr = parsePeerField(currentPeer, p)
			}
			if perr != nil {
				perr.line = lineNum
				return nil, perr
			}
			continue
		}

		return nil, parseError{message: fmt.Sprintf("malformed line: %q", line), line: lineNum}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if currentPeer != nil {
		peers = append(peers, *currentPeer)
	}
	if cfg == nil {
		return nil, parseError{message: "no Interface section found"}
	}

	cfg.Peers = peers
	return cfg, nil
}

func parseInterfaceField(cfg *wgtypes.Config, p pair) *parseError {
	switch p.key {
	case "PrivateKey":
		key, perr := decodeKey(p.value)
		if perr != nil {
			return perr
		}
		cfg.PrivateKey = &key
	case "ListenPort":
		port, err := strconv.Atoi(p.value)
		if err != nil {
			return &parseError{message: err.Error()}
		}
		cfg.ListenPort = &port
	case "FwMark":
		if p.value == "off" {
			mark := 0
			cfg.FirewallMark = &mark
			return nil
		}
		// wg(8) accepts both decimal and 0x-prefixed hexadecimal marks.
		mark, err := strconv.ParseInt(p.value, 0, 32)
		if err != nil {
			return &parseError{message: err.Error()}
		}
		m := int(mark)
		cfg.FirewallMark = &m
	default:
		return &parseError{message: fmt.Sprintf("invalid key %s for Interface section", p.key)}
	}

	return nil
}

func parsePeerField(cfg *wgtypes.PeerConfig, p pair) *parseError {
	switch p.key {
	case "PublicKey":
		key, perr := decodeKey(p.value)
		if perr != nil {
			return perr
		}
		cfg.PublicKey = key
	case "PresharedKey":
		key, perr := decodeKey(p.value)
		if perr != nil {
			return perr
		}
		cfg.PresharedKey = &key
	case "AllowedIPs":
		for _, seg := range strings.Split(p.value, ",") {
			ipn, perr := parseIPNet(strings.TrimSpace(seg))
			if perr != nil {
				return perr
			}
			cfg.AllowedIPs = append(cfg.AllowedIPs, *ipn)
		}
	case "Endpoint":
		addr, err := net.ResolveUDPAddr("udp", p.value)
		if err != nil {
			return &parseError{message: err.Error()}
		}
		cfg.Endpoint = addr
	case "PersistentKeepalive":
		if p.value == "off" {
			cfg.PersistentKeepaliveInterval = nil
			return nil
		}
		sec, err := strconv.Atoi(p.value)
		if err != nil {
			return &parseError{message: err.Error()}
		}
		d := time.Duration(sec) * time.Second
		cfg.PersistentKeepaliveInterval = &d
	default:
		return &parseError{message: fmt.Sprintf("invalid key %s for Peer section", p.key)}
	}

	return nil
}

func decodeKey(s string) (wgtypes.Key, *parseError) {
	key, err := wgtypes.ParseKey(s)
	if err != nil {
		return wgtypes.Key{}, &parseError{message: err.Error()}
	}

	return key, nil
}

func parseIPNet(s string) (*net.IPNet, *parseError) {
	_, ipn, err := net.ParseCIDR(s)
	if err != nil {
		return nil, &parseError{message: err.Error()}
	}

	return ipn, nil
}
