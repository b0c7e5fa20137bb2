package host

import (
	"fmt"
	"net"
)

// InterfaceAddrs lists the addresses of a network interface.
type InterfaceAddrs func(name string) ([]net.Addr, error)

// SystemInterfaceAddrs reads interface addresses from the kernel.
func SystemInterfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

// CheckInterfaceAddress verifies that iface exists and carries ip.
func CheckInterfaceAddress(lookup InterfaceAddrs, iface, ip string) error {
	want := net.ParseIP(ip)
	if want == nil {
		return fmt.Errorf("invalid node IP %q", ip)
	}

	addrs, err := lookup(iface)
	if err != nil {
		return fmt.Errorf("network interface %s not usable: %w", iface, err)
	}

	var seen []string
	for _, a := range addrs {
		var got net.IP
		switch v := a.(type) {
		case *net.IPNet:
			got = v.IP
		case *net.IPAddr:
			got = v.IP
		}
		if got == nil {
			continue
		}
		if got.Equal(want) {
			return nil
		}
		seen = append(seen, got.String())
	}
	return fmt.Errorf("interface %s does not carry %s (addresses: %v)", iface, ip, seen)
}
