package idgen

import (
	"hash/crc32"
	"os"
)

// NodeIDFromHostname derives a stable node ID from a host name.
// Distinct hosts can hash to the same node; deployments that need a hard
// uniqueness guarantee must assign node IDs explicitly.
func NodeIDFromHostname(hostname string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(hostname)) % (MaxNodeID + 1))
}

// LocalNodeID derives the node ID from os.Hostname.
func LocalNodeID() (int64, error) {
	host, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	return NodeIDFromHostname(host), nil
}
