package broadcast

import "net"

// udpConn is the slice of *net.UDPConn the broadcaster needs. Tests supply
// fakes; production uses a socket dialed to (dest, port) from an ephemeral
// local port.
type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)

type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

func netDialUDP(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
	return net.DialUDP(network, laddr, raddr)
}
