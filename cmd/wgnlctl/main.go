// Command wgnlctl inspects and configures WireGuard devices over generic
// netlink, in the manner of wg(8).
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/gookit/ini/v2"

	"github.com/wgkit/wgnetlink"
	"github.com/wgkit/wgnetlink/config"
	"github.com/wgkit/wgnetlink/wgtypes"
)

// defaultsFile supplies fallback flag values, so repeated invocations
// against the same interface don't need --interface each time.
const defaultsFile = "/etc/wgnlctl.ini"

func main() {
	rootCmd := newCommandLine()
	getCmd, getOpt := newGetCommand(rootCmd)
	setCmd, setOpt := newSetCommand(rootCmd)
	showCmd, showOpt := newShowconfCommand(rootCmd)

	switch kingpin.MustParse(rootCmd.Parse(os.Args[1:])) {
	case getCmd.FullCommand():
		getConfig(*getOpt)
	case setCmd.FullCommand():
		setConfig(*setOpt)
	case showCmd.FullCommand():
		showConfig(*showOpt)
	}
}

func newCommandLine() *kingpin.Application {
	return kingpin.New("wgnlctl", "WireGuard netlink configuration tool")
}

type getOption struct {
	Interface      string
	ShowCredential bool
}

type setOption struct {
	Interface string
	Config    string
}

type showconfOption struct {
	Interface string
}

func newGetCommand(root *kingpin.Application) (*kingpin.CmdClause, *getOption) {
	opt := getOption{}
	cmd := root.Command("get", "show the current device configuration")
	cmd.Flag("interface", "interface to show").Default(defaultInterface()).StringVar(&opt.Interface)
	cmd.Flag("show-credential", "show credentials for interface").BoolVar(&opt.ShowCredential)
	return cmd, &opt
}

func newSetCommand(root *kingpin.Application) (*kingpin.CmdClause, *setOption) {
	opt := setOption{}
	cmd := root.Command("set", "apply a configuration file to a device")
	cmd.Flag("interface", "interface to set").Default(defaultInterface()).StringVar(&opt.Interface)
	cmd.Flag("config", "configuration file").Required().StringVar(&opt.Config)
	return cmd, &opt
}

func newShowconfCommand(root *kingpin.Application) (*kingpin.CmdClause, *showconfOption) {
	opt := showconfOption{}
	cmd := root.Command("showconf", "dump the device configuration in setconf format")
	cmd.Flag("interface", "interface to dump").Default(defaultInterface()).StringVar(&opt.Interface)
	return cmd, &opt
}

// defaultInterface reads the interface key from the defaults file, if one
// exists.
func defaultInterface() string {
	cfg := ini.New()
	if err := cfg.LoadExists(defaultsFile); err != nil {
		return ""
	}

	return cfg.String("interface")
}

func checkError(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func getConfig(opt getOption) {
	client, err := wgnetlink.New()
	checkError(err)
	defer client.Close()

	dev, err := client.Device(opt.Interface)
	checkError(err)

	fmt.Printf("Interface: %s (%s)\n", dev.Name, dev.Type.String())
	fmt.Printf("  public key: %s\n", dev.PublicKey.String())
	privkeyStr := "(hidden)"
	if opt.ShowCredential {
		privkeyStr = dev.PrivateKey.String()
	}
	fmt.Printf("  private key: %s\n", privkeyStr)
	fmt.Printf("  listening port: %d\n", dev.ListenPort)
	for _, peer := range dev.Peers {
		printPeer(peer, opt.ShowCredential)
	}
}

func setConfig(opt setOption) {
	fin, err := os.Open(opt.Config)
	checkError(err)
	defer fin.Close()

	cfg, err := config.ParseConfig(fin)
	checkError(err)

	client, err := wgnetlink.New()
	checkError(err)
	defer client.Close()

	checkError(client.ConfigureDevice(opt.Interface, *cfg))
	log.Printf("interface %s configured.\n", opt.Interface)
}

func showConfig(opt showconfOption) {
	client, err := wgnetlink.New()
	checkError(err)
	defer client.Close()

	dev, err := client.Device(opt.Interface)
	checkError(err)

	text, err := deviceConfig(dev).MarshalText()
	checkError(err)
	os.Stdout.Write(text)
}

// deviceConfig converts a device's current state back into a configuration
// which would reproduce it.
func deviceConfig(d *wgtypes.Device) *wgtypes.Config {
	pk := d.PrivateKey
	port := d.ListenPort
	fwmark := d.FirewallMark

	cfg := &wgtypes.Config{
		PrivateKey: &pk,
		Peers:      make([]wgtypes.PeerConfig, 0, len(d.Peers)),
	}
	if port != 0 {
		cfg.ListenPort = &port
	}
	if fwmark != 0 {
		cfg.FirewallMark = &fwmark
	}

	for _, p := range d.Peers {
		pcfg := wgtypes.PeerConfig{
			PublicKey:  p.PublicKey,
			Endpoint:   p.Endpoint,
			AllowedIPs: p.AllowedIPs,
		}
		if p.PresharedKey != (wgtypes.Key{}) {
			psk := p.PresharedKey
			pcfg.PresharedKey = &psk
		}
		if p.PersistentKeepaliveInterval != 0 {
			ka := p.PersistentKeepaliveInterval
			pcfg.PersistentKeepaliveInterval = &ka
		}

		cfg.Peers = append(cfg.Peers, pcfg)
	}

	return cfg
}

func printPeer(peer wgtypes.Peer, showCredential bool) {
	const tmpl = `
peer: {{ .PublicKey }}
  preshared key = {{ .PresharedKey }}
  endpoint = {{ .Endpoint }}
  keep alive interval = {{ .KeepAliveInterval }}s
  last handshake time = {{ .LastHandshakeTime }}
  receive bytes = {{ .ReceiveBytes }}
  transmit bytes = {{ .TransmitBytes }}
  allowed ips = {{ .AllowedIPs }}
  protocol version = {{ .ProtocolVersion }}
`

	type tmplContent struct {
		PublicKey         string
		PresharedKey      string
		Endpoint          string
		KeepAliveInterval float64
		LastHandshakeTime string
		ReceiveBytes      int64
		TransmitBytes     int64
		AllowedIPs        string
		ProtocolVersion   int
	}

	t := template.Must(template.New("peer_tmpl").Parse(tmpl))
	c := tmplContent{
		PublicKey:         peer.PublicKey.String(),
		PresharedKey:      "(hidden)",
		KeepAliveInterval: peer.PersistentKeepaliveInterval.Seconds(),
		LastHandshakeTime: peer.LastHandshakeTime.Format(time.RFC3339),
		ReceiveBytes:      peer.ReceiveBytes,
		TransmitBytes:     peer.TransmitBytes,
		ProtocolVersion:   peer.ProtocolVersion,
	}

	if peer.Endpoint != nil {
		c.Endpoint = peer.Endpoint.String()
	}
	if showCredential {
		c.PresharedKey = peer.PresharedKey.String()
	}

	ips := make([]string, 0, len(peer.AllowedIPs))
	for _, v := range peer.AllowedIPs {
		ips = append(ips, v.String())
	}
	c.AllowedIPs = strings.Join(ips, ", ")

	checkError(t.Execute(os.Stdout, c))
}
