package correlation

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spaolacci/murmur3"
)

// probeAddress is only used for route selection; UDP dial sends no packets.
const probeAddress = "8.8.8.8:80"

// HostInfo is the host identity shared by every context a Factory creates.
type HostInfo struct {
	Name string
	IP   string
	Hash string
}

// ResolveHost reads the host name and local outbound IP. Failures leave the
// corresponding field empty.
func ResolveHost() HostInfo {
	name, err := os.Hostname()
	if err != nil {
		name = ""
	}
	return HostInfo{
		Name: name,
		IP:   outboundIP(),
		Hash: hostHash(name),
	}
}

// outboundIP asks the socket layer which local address it would use to reach
// probeAddress.
func outboundIP() string {
	conn, err := net.DialTimeout("udp", probeAddress, time.Second)
	if err != nil {
		return ""
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return ""
	}
	return addr.IP.String()
}

// hostHash returns the first four hex characters of the murmur3 hash of name.
func hostHash(name string) string {
	return fmt.Sprintf("%08x", murmur3.Sum32([]byte(name)))[:4]
}
