package api

import (
	"time"

	"github.com/c360/topstack/client"
	"github.com/c360/topstack/envelope"
)

const alertPrefix = "/alert/open_api/v1"

// AlertLevel is a severity level.
type AlertLevel struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// AlertType is an alert category.
type AlertType struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AlertTypeList is the alert_type response body.
type AlertTypeList struct {
	Types []AlertType `json:"types"`
}

// AlertRecordQuery filters alert records. Start and End bound the alert time.
type AlertRecordQuery struct {
	PageRequest
	DeviceID  string     `json:"deviceID,omitempty"`
	Level     string     `json:"level,omitempty"`
	AlertType string     `json:"alertType,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
}

// Validate checks paging and the time range.
func (q AlertRecordQuery) Validate() error {
	if err := q.PageRequest.Validate(); err != nil {
		return err
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return invalid("end", "must not precede start")
	}
	return nil
}

// AlertRecord is one raised alert.
type AlertRecord struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceID"`
	PointID   string    `json:"pointID,omitempty"`
	Level     string    `json:"level"`
	AlertType string    `json:"alertType"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Recovered bool      `json:"recovered"`
	CreatedAt time.Time `json:"createdAt"`
}

// AlertRecordPage is one page of alert records. The alert module names the
// list "records" rather than "items".
type AlertRecordPage struct {
	Total   int           `json:"total"`
	Records []AlertRecord `json:"records"`
}

// RecordRef selects a single alert record.
type RecordRef struct {
	RecordID string `json:"recordID"`
}

// Validate requires the record identifier.
func (r RecordRef) Validate() error { return required("recordID", r.RecordID) }

// AlertActivity is one entry of an alert record's history.
type AlertActivity struct {
	Action   string    `json:"action"`
	Operator string    `json:"operator,omitempty"`
	Remark   string    `json:"remark,omitempty"`
	Time     time.Time `json:"time"`
}

var alertLevelsSchema = envelope.MustSchema(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["code", "name"],
		"properties": {"code": {"type": "string"}, "name": {"type": "string"}}
	}
}`)

var alertTypesSchema = envelope.MustSchema(`{
	"type": "object",
	"required": ["types"],
	"properties": {"types": {"type": "array"}}
}`)

var alertRecordsSchema = envelope.MustSchema(`{
	"type": "object",
	"required": ["total", "records"],
	"properties": {"total": {"type": "integer"}, "records": {"type": "array"}}
}`)

// Alert endpoints
var (
	AlertLevels = client.Endpoint[client.Empty, []AlertLevel]{
		Name:   "alert.level",
		Path:   alertPrefix + "/alert_level",
		Schema: alertLevelsSchema,
	}
	AlertTypes = client.Endpoint[client.Empty, AlertTypeList]{
		Name:   "alert.type",
		Path:   alertPrefix + "/alert_type",
		Schema: alertTypesSchema,
	}
	AlertRecords = client.Endpoint[AlertRecordQuery, AlertRecordPage]{
		Name:   "alert.record",
		Path:   alertPrefix + "/alert_record",
		Schema: alertRecordsSchema,
	}
	AlertRecordActivity = client.Endpoint[RecordRef, []AlertActivity]{
		Name: "alert.record.activity",
		Path: alertPrefix + "/alert_record/activity",
	}
)
