package pipeline

import (
	"github.com/fintext/fatura/internal/common"
)

// Event names emitted during an extraction.
const (
	EventBankDetection   = "bank_detection"
	EventCacheHit        = "cache_hit"
	EventCacheMiss       = "cache_miss"
	EventAssistOverride  = "ml_override"
	EventParserSelection = "parser_selection"
	EventTemplateApplied = "template_applied"
)

// Observer receives pipeline events as they happen. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	Event(traceID, name string, fields common.Fields)
}

// LogObserver writes events to the structured logger at debug level.
type LogObserver struct{}

func (LogObserver) Event(traceID, name string, fields common.Fields) {
	if fields == nil {
		fields = common.Fields{}
	}
	fields["trace_id"] = traceID
	fields["event"] = name
	common.LogDebug("pipeline event", fields)
}

type nopObserver struct{}

func (nopObserver) Event(string, string, common.Fields) {}
