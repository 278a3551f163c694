package engine

import (
	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
	"github.com/cnath12/vpc-flow-log-analyzer/pkg/wellknown"
)

// Classifier tags flow records using a lookup table. The table is not
// modified after construction and may be shared between goroutines.
type Classifier struct {
	table model.LookupTable
}

func NewClassifier(table model.LookupTable) *Classifier {
	if table == nil {
		table = make(model.LookupTable)
	}
	return &Classifier{table: table}
}

func (c *Classifier) Classify(rec model.FlowRecord) model.Classification {
	key := DeriveKey(rec.DstPort, rec.ProtocolNumber)
	tag, ok := c.table[key]
	if !ok {
		tag = model.UntaggedTag
	}
	return model.Classification{Key: key, Tag: tag}
}

// DeriveKey builds the lookup key for a destination port and protocol
// number. ICMP always maps to model.ICMPKey.
func DeriveKey(port, protocolNumber int) model.LookupKey {
	name := wellknown.ProtocolName(protocolNumber)
	if name == model.ICMP {
		return model.ICMPKey
	}
	return model.LookupKey{Port: port, Protocol: name}
}
