package wellknown

import (
	"strings"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
)

// DefaultProtocolName is returned for any protocol number without an entry
// in the registry, including numbers that are not real IANA protocols.
const DefaultProtocolName = model.TCP

var protocolRegistry = map[int]model.Protocol{
	1:  model.ICMP,
	6:  model.TCP,
	17: model.UDP,
}

var protocolNumbers map[model.Protocol]int

func init() {
	protocolNumbers = make(map[model.Protocol]int, len(protocolRegistry))
	for number, name := range protocolRegistry {
		protocolNumbers[name] = number
	}
}

// ProtocolName normalizes an IANA protocol number to the lowercase name used
// in lookup keys.
func ProtocolName(number int) model.Protocol {
	if name, ok := protocolRegistry[number]; ok {
		return name
	}
	return DefaultProtocolName
}

// ProtocolNumber returns the protocol number registered for name.
func ProtocolNumber(name string) (int, bool) {
	number, ok := protocolNumbers[model.Protocol(strings.ToLower(name))]
	return number, ok
}
