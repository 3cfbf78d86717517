package domain

import (
	"encoding/json"
	"fmt"
)

// Schema describes a typed tool parameter. Objects list their properties and
// required fields; arrays describe their items.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// Schema types.
const (
	TypeObject  = "object"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

// ToolSchema is an immutable catalog entry describing a tool.
type ToolSchema struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// IsZero reports whether s is the empty schema returned for unknown tools.
func (s ToolSchema) IsZero() bool {
	return s.Name == "" && s.Description == "" && s.Parameters == nil
}

// ToolStatus is the outcome of a tool execution.
type ToolStatus string

const (
	StatusSuccess ToolStatus = "SUCCESS"
	StatusError   ToolStatus = "ERROR"
)

// UIHint tells a presentation layer how to render a tool payload.
type UIHint string

const (
	HintTable   UIHint = "TABLE"
	HintStat    UIHint = "STAT"
	HintMessage UIHint = "MESSAGE"
	HintNav     UIHint = "NAV"
	HintChart   UIHint = "CHART"
)

// Payload is the typed data carried by a ToolResult. The set of
// implementations is closed; each reports the hint it renders as.
type Payload interface {
	Hint() UIHint
	payload()
}

// TablePayload is rows of cells under named columns.
type TablePayload struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// StatPayload is a single labeled figure.
type StatPayload struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// MessagePayload is free text.
type MessagePayload struct {
	Text string `json:"text"`
}

// NavPayload names the view the application navigated to.
type NavPayload struct {
	Target string `json:"target"`
}

// ChartPoint is one labeled value in a chart series.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartPayload is a titled series of points.
type ChartPayload struct {
	Title  string       `json:"title"`
	Series []ChartPoint `json:"series"`
}

func (TablePayload) Hint() UIHint   { return HintTable }
func (StatPayload) Hint() UIHint    { return HintStat }
func (MessagePayload) Hint() UIHint { return HintMessage }
func (NavPayload) Hint() UIHint     { return HintNav }
func (ChartPayload) Hint() UIHint   { return HintChart }

func (TablePayload) payload()   {}
func (StatPayload) payload()    {}
func (MessagePayload) payload() {}
func (NavPayload) payload()     {}
func (ChartPayload) payload()   {}

// ToolResult is the outcome of executing one tool.
type ToolResult struct {
	ToolName string
	Status   ToolStatus
	Payload  Payload
	Error    string
}

// UIHint returns the payload's hint, or "" when there is no payload.
func (r ToolResult) UIHint() UIHint {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Hint()
}

// Success builds a SUCCESS result.
func Success(toolName string, p Payload) ToolResult {
	return ToolResult{ToolName: toolName, Status: StatusSuccess, Payload: p}
}

// Failure builds an ERROR result.
func Failure(toolName string, err error) ToolResult {
	return ToolResult{ToolName: toolName, Status: StatusError, Error: err.Error()}
}

type toolResultJSON struct {
	ToolName string          `json:"toolName"`
	Status   ToolStatus      `json:"status"`
	UIHint   UIHint          `json:"uiHint,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// MarshalJSON encodes the payload under "data" with its hint under "uiHint".
func (r ToolResult) MarshalJSON() ([]byte, error) {
	out := toolResultJSON{
		ToolName: r.ToolName,
		Status:   r.Status,
		UIHint:   r.UIHint(),
		Error:    r.Error,
	}
	if r.Payload != nil {
		b, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		out.Data = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "data" into the payload variant named by "uiHint".
func (r *ToolResult) UnmarshalJSON(b []byte) error {
	var in toolResultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.ToolName = in.ToolName
	r.Status = in.Status
	r.Error = in.Error
	r.Payload = nil
	if in.UIHint == "" {
		return nil
	}

	var p Payload
	var err error
	switch in.UIHint {
	case HintTable:
		var v TablePayload
		err = json.Unmarshal(in.Data, &v)
		p = v
	case HintStat:
		var v StatPayload
		err = json.Unmarshal(in.Data, &v)
		p = v
	case HintMessage:
		var v MessagePayload
		err = json.Unmarshal(in.Data, &v)
		p = v
	case HintNav:
		var v NavPayload
		err = json.Unmarshal(in.Data, &v)
		p = v
	case HintChart:
		var v ChartPayload
		err = json.Unmarshal(in.Data, &v)
		p = v
	default:
		return fmt.Errorf("unknown ui hint: %s", in.UIHint)
	}
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", in.UIHint, err)
	}
	r.Payload = p
	return nil
}
