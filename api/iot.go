package api

import (
	"net/http"
	"time"

	"github.com/c360/topstack/client"
	"github.com/c360/topstack/envelope"
)

const iotPrefix = "/iot/open_api/v1"

// PointRef names one point of one device.
type PointRef struct {
	DeviceID string `json:"deviceID"`
	PointID  string `json:"pointID"`
}

// Validate requires both identifiers.
func (r PointRef) Validate() error {
	if err := required("deviceID", r.DeviceID); err != nil {
		return err
	}
	return required("pointID", r.PointID)
}

// PointValue is the latest value of a point.
type PointValue struct {
	DeviceID  string    `json:"deviceID"`
	PointID   string    `json:"pointID"`
	Value     any       `json:"value"`
	Quality   int       `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchRequest asks for the latest values of several points.
type BatchRequest struct {
	Points []PointRef `json:"points"`
}

// Validate requires at least one point and checks each.
func (r BatchRequest) Validate() error {
	if len(r.Points) == 0 {
		return invalid("points", "must not be empty")
	}
	for _, p := range r.Points {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SetValueRequest writes a control value to a point. Values travel as strings.
type SetValueRequest struct {
	DeviceID string `json:"deviceID"`
	PointID  string `json:"pointID"`
	Value    string `json:"value"`
}

// Validate requires the point identifiers.
func (r SetValueRequest) Validate() error {
	return PointRef{DeviceID: r.DeviceID, PointID: r.PointID}.Validate()
}

// HistoryRequest queries stored values of points over [Start, End].
type HistoryRequest struct {
	Points      []PointRef `json:"points"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Interval    string     `json:"interval,omitempty"`
	Aggregation string     `json:"aggregation,omitempty"`
}

// Validate checks the points and the time range.
func (r HistoryRequest) Validate() error {
	if err := (BatchRequest{Points: r.Points}).Validate(); err != nil {
		return err
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return invalid("start", "start and end are required")
	}
	if r.End.Before(r.Start) {
		return invalid("end", "must not precede start")
	}
	switch r.Aggregation {
	case "", "first", "last", "min", "max", "mean", "sum", "count":
	default:
		return invalid("aggregation", "unknown function %q", r.Aggregation)
	}
	return nil
}

// Sample is one stored value.
type Sample struct {
	Time  time.Time `json:"time"`
	Value any       `json:"value"`
}

// Series holds the samples of one point.
type Series struct {
	DeviceID string   `json:"deviceID"`
	PointID  string   `json:"pointID"`
	Values   []Sample `json:"values"`
}

// HistoryResponse is the result of a history query.
type HistoryResponse struct {
	Results []Series `json:"results"`
}

var pointValueSchema = envelope.MustSchema(`{
	"type": "object",
	"required": ["deviceID", "pointID"],
	"properties": {
		"deviceID": {"type": "string"},
		"pointID": {"type": "string"},
		"quality": {"type": "integer"},
		"timestamp": {"type": "string"}
	}
}`)

// IoT data endpoints
var (
	FindLast = client.Endpoint[PointRef, PointValue]{
		Name:   "iot.findLast",
		Method: http.MethodPost,
		Path:   iotPrefix + "/data/findLast",
		Schema: pointValueSchema,
	}
	FindLastBatch = client.Endpoint[BatchRequest, []PointValue]{
		Name:   "iot.findLastBatch",
		Method: http.MethodPost,
		Path:   iotPrefix + "/data/findLastBatch",
		Schema: envelope.MustSchema(`{"type": ["array", "null"], "items": {"$ref": "#/definitions/point"},
			"definitions": {"point": {"type": "object", "required": ["deviceID", "pointID"]}}}`),
	}
	SetValue = client.Endpoint[SetValueRequest, client.Empty]{
		Name:   "iot.setValue",
		Method: http.MethodPost,
		Path:   iotPrefix + "/data/setValue",
	}
	QueryHistory = client.Endpoint[HistoryRequest, HistoryResponse]{
		Name:   "iot.queryHistory",
		Method: http.MethodPost,
		Path:   iotPrefix + "/data/query",
	}
)
