package types

import (
	"fmt"
	"strings"
)

// Category is one of the fixed report kinds. Each category has its own
// management-object query, column schema, and display-name rule.
type Category string

const (
	// CategoryEntityCache reports per-entity cache counters.
	CategoryEntityCache Category = "BEEntityCache"
	// CategoryAgentEntity reports per-entity agent assert/retract counters.
	CategoryAgentEntity Category = "BEAgentEntity"
	// CategoryTxnManager reports transaction-manager timing. Delta-style:
	// counters are reset after every successful read.
	CategoryTxnManager Category = "RTCTxnManagerReport"
)

// TimestampColumn is the synthetic attribute injected into every sample,
// carrying the shared per-tick timestamp.
const TimestampColumn = "DateTime"

// TimestampLayout is the wire format of the shared tick timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000"

// GeneratedPrefix is the code-generation namespace prefix stripped from
// entity display names.
const GeneratedPrefix = "be.gen."

// ResetOperation is the no-argument operation invoked on delta-style
// objects after a successful read.
const ResetOperation = "resetStats"

// entityCacheColumns: the first column doubles as the identifier, so the
// header carries no separate Object column.
var entityCacheColumns = []string{
	"ClassName", "DateTime", "CacheSize", "GetAvgTime", "GetCount",
	"NumHandlesInStore", "PutAvgTime", "PutCount", "RemoveAvgTime",
	"RemoveCount", "TypeId",
}

var agentEntityColumns = []string{
	"DateTime", "AvgTimeInRTC", "AvgTimePostRTC", "AvgTimePreRTC", "CacheMode",
	"NumAssertedFromAgents", "NumAssertedFromChannel", "NumHitsInL1Cache",
	"NumMissesInL1Cache", "NumModifiedFromAgents", "NumModifiedFromChannel",
	"NumRecovered", "NumRetractedFromAgents", "NumRetractedFromChannel",
}

var txnManagerColumns = []string{
	"DateTime", "AvgActionTxnMillis", "AvgCacheQueueWaitTimeMillis",
	"AvgCacheTxnMillis", "AvgDBOpsBatchSize", "AvgDBQueueWaitTimeMillis",
	"AvgDBTxnMillis", "AvgSuccessfulTxnTimeMillis", "LastDBBatchSize",
	"PendingActions", "PendingCacheWrites", "PendingDBWrites",
	"PendingEventsToAck", "PendingLocksToRelease", "TotalDBTxnsCompleted",
	"TotalErrors", "TotalSuccessfulTxns",
}

// CategorySpec describes how one category is queried and serialized.
type CategorySpec struct {
	// Query is the management object-name pattern listing this category's
	// objects.
	Query string
	// Columns are the attribute keys in fixed output order.
	Columns []string
	// ObjectColumn is true when the header carries a leading "Object"
	// column ahead of the schema columns.
	ObjectColumn bool
	// NameAttribute names the attribute carrying the entity display name.
	// Empty means the name comes from NameKeyProperty or the category itself.
	NameAttribute string
	// NameKeyProperty names the object-name key property carrying the
	// entity display name.
	NameKeyProperty string
	// Resettable marks delta-style categories whose counters are reset
	// after every successful read.
	Resettable bool
}

var categorySpecs = map[Category]CategorySpec{
	CategoryEntityCache: {
		Query:         "com.tibco.be:service=Cache,name=*",
		Columns:       entityCacheColumns,
		NameAttribute: "ClassName",
	},
	CategoryAgentEntity: {
		Query:           "com.tibco.be:type=Agent,agentId=*,subType=Entity,entityId=*",
		Columns:         agentEntityColumns,
		ObjectColumn:    true,
		NameKeyProperty: "entityId",
	},
	CategoryTxnManager: {
		Query:        "com.tibco.be:service=RTCTxnManagerReport",
		Columns:      txnManagerColumns,
		ObjectColumn: true,
		Resettable:   true,
	},
}

// categoryOrder fixes the iteration order of AllCategories.
var categoryOrder = []Category{
	CategoryEntityCache,
	CategoryAgentEntity,
	CategoryTxnManager,
}

// AllCategories returns the fixed set of categories in a stable order.
func AllCategories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory validates a configured category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categorySpecs[c]; !ok {
		return "", fmt.Errorf("unknown report category %q", s)
	}
	return c, nil
}

// Spec returns the query/schema description for this category.
// Panics on unknown categories: they cannot be constructed past
// ParseCategory, so an unknown value here is a programming error.
func (c Category) Spec() CategorySpec {
	spec, ok := categorySpecs[c]
	if !ok {
		panic(fmt.Sprintf("unknown category %q", string(c)))
	}
	return spec
}

// Header returns the comma-separated header line for this category's
// report file, without trailing newline.
func (c Category) Header() string {
	spec := c.Spec()
	if spec.ObjectColumn {
		return "Object," + strings.Join(spec.Columns, ",")
	}
	return strings.Join(spec.Columns, ",")
}

// DisplayName derives the entity display name for one sampled object.
// keyProps are the object-name key properties, attrs the fetched attribute
// map. The generated-code namespace prefix is stripped.
func (c Category) DisplayName(keyProps map[string]string, attrs map[string]any) string {
	spec := c.Spec()
	var name string
	switch {
	case spec.NameAttribute != "":
		if v, ok := attrs[spec.NameAttribute].(string); ok {
			name = v
		}
	case spec.NameKeyProperty != "":
		name = keyProps[spec.NameKeyProperty]
	default:
		name = string(c)
	}
	return strings.TrimPrefix(name, GeneratedPrefix)
}
