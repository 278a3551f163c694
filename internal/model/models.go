package model

type Protocol string // "tcp", "udp", "icmp"

const (
	TCP  Protocol = "tcp"
	UDP  Protocol = "udp"
	ICMP Protocol = "icmp"
)

// UntaggedTag is reported for records with no lookup match.
const UntaggedTag = "Untagged"

// FlowLogVersion is the only flow log schema version accepted.
const FlowLogVersion = "2"

// MinFlowLogFields is the field count of a version 2 record.
const MinFlowLogFields = 14

type LookupKey struct {
	Port     int
	Protocol Protocol
}

// ICMPKey is used for all ICMP traffic; the record's port is ignored.
var ICMPKey = LookupKey{Port: 0, Protocol: ICMP}

type LookupTable map[LookupKey]string

type FlowRecord struct {
	Line           int
	Version        string
	DstPort        int
	ProtocolNumber int
}

type Classification struct {
	Key LookupKey
	Tag string
}

// Tagged reports whether the record matched a lookup entry.
func (c Classification) Tagged() bool {
	return c.Tag != UntaggedTag
}

type TagCounts map[string]uint64

type PortProtocolCounts map[LookupKey]uint64
