package config

import (
	"fmt"
	"net"
)

// DetectHostIP determines the address other machines reach this host on,
// used to build the URLs embedded in the rendered boot menu. The UDP
// dial never sends a packet; it only asks the kernel which source
// address an outbound route would pick.
func DetectHostIP() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String(), nil
		}
	}

	// No default route; fall back to the first global unicast interface
	// address, which is the right answer on an isolated provisioning LAN.
	interfaces, ifErr := net.Interfaces()
	if ifErr != nil {
		return "", fmt.Errorf("failed to enumerate interfaces: %w", ifErr)
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, addrErr := iface.Addrs()
		if addrErr != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			if ipNet.IP.IsGlobalUnicast() {
				return ipNet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("no usable IPv4 address found")
}
