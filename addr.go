package ice

import "net"

// parseAddr extracts the IP, port and network type from a UDP address.
func parseAddr(in net.Addr) (net.IP, int, NetworkType, bool) {
	if udpAddr, ok := in.(*net.UDPAddr); ok {
		nt := NetworkTypeUDP6
		if udpAddr.IP.To4() != nil {
			nt = NetworkTypeUDP4
		}
		return udpAddr.IP, udpAddr.Port, nt, true
	}
	return nil, 0, 0, false
}

func createAddr(ip net.IP, port int) net.Addr {
	return &net.UDPAddr{IP: ip, Port: port}
}

func addrEqual(a, b net.Addr) bool {
	aIP, aPort, _, aOk := parseAddr(a)
	if !aOk {
		return false
	}
	bIP, bPort, _, bOk := parseAddr(b)
	if !bOk {
		return false
	}
	return aIP.Equal(bIP) && aPort == bPort
}
