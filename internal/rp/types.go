package rp

import (
	"encoding/json"
	"fmt"
	"time"
)

// maxMillisTimestamp is the upper bound for a value to be interpreted as
// milliseconds (approximately year 2286). Values at or above this threshold
// are treated as microseconds.
const maxMillisTimestamp int64 = 1e13

// EpochMillis represents a point in time serialized as an integer epoch
// timestamp. On deserialization it auto-detects whether the value is
// milliseconds or microseconds based on its magnitude. Serialization always
// produces milliseconds.
type EpochMillis time.Time

// Millis wraps a time.Time for request payloads.
func Millis(t time.Time) EpochMillis { return EpochMillis(t) }

// Time returns the underlying time.Time value.
func (e EpochMillis) Time() time.Time { return time.Time(e) }

// MarshalJSON serializes EpochMillis as Unix milliseconds.
func (e EpochMillis) MarshalJSON() ([]byte, error) {
	ms := time.Time(e).UnixMilli()
	return json.Marshal(ms)
}

// UnmarshalJSON deserializes an integer timestamp, auto-detecting ms or us.
func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	var value int64
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("unmarshal epoch millis: %w", err)
	}
	if value >= maxMillisTimestamp {
		*e = EpochMillis(time.UnixMicro(value))
	} else {
		*e = EpochMillis(time.UnixMilli(value))
	}
	return nil
}

// --- Request types (reporting side) ---

// StartLaunchRQ creates a new launch.
type StartLaunchRQ struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	StartTime   EpochMillis             `json:"startTime"`
	Mode        string                  `json:"mode,omitempty"`
	Attributes  []ItemAttributeResource `json:"attributes,omitempty"`
}

// FinishExecutionRQ finishes a launch.
type FinishExecutionRQ struct {
	EndTime EpochMillis `json:"endTime"`
	Status  string      `json:"status,omitempty"`
}

// StartTestItemRQ creates a suite/test/step item. LaunchUUID ties the item to
// its launch; the parent is addressed through the request path.
type StartTestItemRQ struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	StartTime   EpochMillis             `json:"startTime"`
	Type        string                  `json:"type"`
	LaunchUUID  string                  `json:"launchUuid"`
	Attributes  []ItemAttributeResource `json:"attributes,omitempty"`
}

// FinishTestItemRQ finishes a test item.
type FinishTestItemRQ struct {
	EndTime    EpochMillis `json:"endTime"`
	Status     string      `json:"status,omitempty"`
	LaunchUUID string      `json:"launchUuid"`
	Issue      *Issue      `json:"issue,omitempty"`
}

// SaveLogRQ is one log record. File, when set, names a binary part of the
// multipart batch request carrying the attachment bytes.
type SaveLogRQ struct {
	LaunchUUID string       `json:"launchUuid"`
	ItemUUID   string       `json:"itemUuid,omitempty"`
	Time       EpochMillis  `json:"time"`
	Message    string       `json:"message"`
	Level      string       `json:"level"`
	File       *FileLocator `json:"file,omitempty"`
}

// FileLocator references an attachment part by name.
type FileLocator struct {
	Name string `json:"name"`
}

// EntryCreatedRS is the creation response for launches and items.
type EntryCreatedRS struct {
	ID string `json:"id"`
}

// --- Response types (aligned with the RP 5.11 OpenAPI spec) ---

// LaunchResource represents a Report Portal launch.
type LaunchResource struct {
	ID          int                     `json:"id"`
	UUID        string                  `json:"uuid,omitempty"`
	Name        string                  `json:"name,omitempty"`
	Number      int                     `json:"number,omitempty"`
	Status      string                  `json:"status,omitempty"`
	StartTime   *EpochMillis            `json:"startTime,omitempty"`
	EndTime     *EpochMillis            `json:"endTime,omitempty"`
	Description string                  `json:"description,omitempty"`
	Owner       string                  `json:"owner,omitempty"`
	Attributes  []ItemAttributeResource `json:"attributes,omitempty"`
	Statistics  *StatisticsResource     `json:"statistics,omitempty"`
}

// TestItemResource represents a Report Portal test item (step/test/suite).
type TestItemResource struct {
	ID          int                     `json:"id"`
	UUID        string                  `json:"uuid,omitempty"`
	Name        string                  `json:"name,omitempty"`
	Type        string                  `json:"type,omitempty"`
	Status      string                  `json:"status,omitempty"`
	LaunchID    int                     `json:"launchId,omitempty"`
	Description string                  `json:"description,omitempty"`
	Parent      int                     `json:"parent,omitempty"`
	Path        string                  `json:"path,omitempty"`
	PathNames   *PathNameResource       `json:"pathNames,omitempty"`
	StartTime   *EpochMillis            `json:"startTime,omitempty"`
	EndTime     *EpochMillis            `json:"endTime,omitempty"`
	Issue       *Issue                  `json:"issue,omitempty"`
	Attributes  []ItemAttributeResource `json:"attributes,omitempty"`
	HasChildren bool                    `json:"hasChildren,omitempty"`
	HasStats    bool                    `json:"hasStats,omitempty"`
}

// Issue represents the defect/issue information attached to a test item.
type Issue struct {
	IssueType    string `json:"issueType,omitempty"`
	Comment      string `json:"comment,omitempty"`
	AutoAnalyzed bool   `json:"autoAnalyzed,omitempty"`
}

// ItemAttributeResource represents a key-value attribute on a launch/item.
type ItemAttributeResource struct {
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
	System bool   `json:"system,omitempty"`
}

// TagsToAttributes converts plain tag values into value-only attributes.
func TagsToAttributes(tags []string) []ItemAttributeResource {
	if len(tags) == 0 {
		return nil
	}
	attrs := make([]ItemAttributeResource, 0, len(tags))
	for _, tag := range tags {
		attrs = append(attrs, ItemAttributeResource{Value: tag})
	}
	return attrs
}

// StatisticsResource holds execution and defect statistics.
type StatisticsResource struct {
	Defects    map[string]map[string]int `json:"defects,omitempty"`
	Executions map[string]int            `json:"executions,omitempty"`
}

// PathNameResource holds the hierarchical path names for an item.
type PathNameResource struct {
	ItemPaths []PathSegment `json:"itemPaths,omitempty"`
}

// PathSegment is one element in the path hierarchy.
type PathSegment struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// --- Paginated response wrappers ---

// PagedLaunches is the paginated response for launch listing.
type PagedLaunches struct {
	Content []LaunchResource `json:"content"`
	Page    PageInfo         `json:"page"`
}

// PagedItems is the paginated response for item listing.
type PagedItems struct {
	Content []TestItemResource `json:"content"`
	Page    PageInfo           `json:"page"`
}

// PageInfo holds pagination metadata.
type PageInfo struct {
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// ErrorRS is the standard RP error response shape.
type ErrorRS struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}
