package idgen

import (
	"encoding/binary"
	"net"

	"github.com/ethereum/go-ethereum/crypto"
)

// machineID derives a 10-bit, non-zero machine identifier from the first
// non-zero hardware address found on the host, hashed with Keccak256.
// Falls back to a fixed non-zero value when no interface carries a MAC
// (containers with only loopback), mirroring the original's "never return
// a zero machine id" requirement.
func machineID() uint64 {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if len(iface.HardwareAddr) == 0 || isZeroMAC(iface.HardwareAddr) {
				continue
			}
			sum := crypto.Keccak256(iface.HardwareAddr)
			v := binary.BigEndian.Uint64(sum[len(sum)-8:]) & 0x3FF
			if v != 0 {
				return v
			}
		}
	}
	return 0x155 // arbitrary non-zero fallback
}

func isZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}
