package parser

import (
	"fmt"
	"strings"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/model"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/utils"
)

// Field positions in a version 2 VPC flow log record.
const (
	fieldVersion  = 0
	fieldDstPort  = 6
	fieldProtocol = 7
)

// ParseFlowRecord parses one flow log line. Lines that are not version 2
// records (too few fields or another version) return ok=false and no error.
// A line that passes that check but carries a non-numeric port or protocol
// returns ErrMalformedRecord.
func ParseFlowRecord(line string, lineNo int) (rec model.FlowRecord, ok bool, err error) {
	fields := strings.Fields(line)
	if len(fields) < model.MinFlowLogFields || fields[fieldVersion] != model.FlowLogVersion {
		return model.FlowRecord{}, false, nil
	}

	port, err := utils.ParsePort(fields[fieldDstPort])
	if err != nil {
		return model.FlowRecord{}, false, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
	}
	proto, err := utils.ParseProtocolNumber(fields[fieldProtocol])
	if err != nil {
		return model.FlowRecord{}, false, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
	}

	return model.FlowRecord{
		Line:           lineNo,
		Version:        fields[fieldVersion],
		DstPort:        port,
		ProtocolNumber: proto,
	}, true, nil
}
