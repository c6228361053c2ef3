package message

import (
	"encoding/json"
	"time"

	"github.com/c360/topstack/subject"
)

// Record is one decoded event. Concrete types are PointData, DeviceState,
// GatewayState, ChannelState and AlertInfo.
type Record interface {
	// Class is the message class the record was decoded as.
	Class() subject.Class
	// Origin is the subject the record arrived on, empty when decoded outside a subscription.
	Origin() string
}

// PointData is one reading of a device point.
type PointData struct {
	Subject      string    `json:"-"`
	DeviceID     string    `json:"device_id"`
	PointID      string    `json:"point_id"`
	Value        any       `json:"value"`
	Quality      int       `json:"quality"`
	Timestamp    time.Time `json:"timestamp"`
	Status       int       `json:"status"`
	DeviceTypeID string    `json:"device_type_id"`
	ProjectID    string    `json:"project_id"`
	GatewayID    string    `json:"gateway_id"`
	NotSave      bool      `json:"not_save"`
}

var pointDataFields = newFieldTable(
	idField("device_id", "device"),
	idField("point_id", "point"),
	plainField("value"),
	plainField("quality"),
	field{name: "timestamp", wire: []string{"timestamp", "ts"}},
	plainField("status"),
	idField("device_type_id", "deviceType"),
	idField("project_id", "project"),
	idField("gateway_id", "gateway"),
	camelField("not_save", "notSave"),
)

// Class implements Record
func (p PointData) Class() subject.Class { return subject.ClassPointData }

// Origin implements Record
func (p PointData) Origin() string { return p.Subject }

// DeviceState reports a device going online or offline.
type DeviceState struct {
	Subject   string    `json:"-"`
	ProjectID string    `json:"project_id"`
	GatewayID string    `json:"gateway_id"`
	DeviceID  string    `json:"device_id"`
	State     int       `json:"state"`
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

var deviceStateFields = newFieldTable(
	idField("project_id", "project"),
	idField("gateway_id", "gateway"),
	idField("device_id", "device"),
	plainField("state"),
	field{name: "timestamp", wire: []string{"timestamp", "ts"}},
)

// Class implements Record
func (d DeviceState) Class() subject.Class { return subject.ClassDeviceState }

// Origin implements Record
func (d DeviceState) Origin() string { return d.Subject }

// GatewayState reports a gateway going online or offline.
type GatewayState struct {
	Subject   string    `json:"-"`
	SN        string    `json:"sn"`
	Name      string    `json:"name"`
	ProjectID string    `json:"project_id"`
	GatewayID string    `json:"gateway_id"`
	State     int       `json:"state"`
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

var gatewayStateFields = newFieldTable(
	field{name: "sn", wire: []string{"sn", "SN"}},
	plainField("name"),
	idField("project_id", "project"),
	idField("gateway_id", "gateway"),
	plainField("state"),
	field{name: "timestamp", wire: []string{"timestamp", "ts"}},
)

// Class implements Record
func (g GatewayState) Class() subject.Class { return subject.ClassGatewayState }

// Origin implements Record
func (g GatewayState) Origin() string { return g.Subject }

// ChannelState reports the run and link state of a gateway channel.
type ChannelState struct {
	Subject     string    `json:"-"`
	ProjectID   string    `json:"project_id"`
	GatewayID   string    `json:"gateway_id"`
	ChannelID   string    `json:"channel_id"`
	Running     bool      `json:"running"`
	Connected   bool      `json:"connected"`
	Timestamp   time.Time `json:"timestamp"`
	GatewayName string    `json:"gateway_name"`
	ChannelName string    `json:"channel_name"`
}

var channelStateFields = newFieldTable(
	idField("project_id", "project"),
	idField("gateway_id", "gateway"),
	idField("channel_id", "channel"),
	plainField("running"),
	plainField("connected"),
	field{name: "timestamp", wire: []string{"timestamp", "ts"}},
	camelField("gateway_name", "gatewayName"),
	camelField("channel_name", "channelName"),
)

// Class implements Record
func (c ChannelState) Class() subject.Class { return subject.ClassChannelState }

// Origin implements Record
func (c ChannelState) Origin() string { return c.Subject }

// AlertInfo is an alert raised by a rule. Attributes holds wire fields this
// version does not know, verbatim.
type AlertInfo struct {
	Subject         string                     `json:"-"`
	AlertID         string                     `json:"alert_id"`
	Status          string                     `json:"status"`
	CreatedAt       time.Time                  `json:"created_at"`
	Title           string                     `json:"title"`
	Content         string                     `json:"content"`
	ProjectID       string                     `json:"project_id"`
	DeviceID        string                     `json:"device_id"`
	AlertTypeID     string                     `json:"alert_type_id"`
	AlertLevelID    string                     `json:"alert_level_id"`
	RuleName        string                     `json:"rule_name"`
	AlertTypeName   string                     `json:"alert_type_name"`
	AlertTypeCode   string                     `json:"alert_type_code"`
	AlertLevelCode  string                     `json:"alert_level_code"`
	AlertLevelColor string                     `json:"alert_level_color"`
	AlertLevelName  string                     `json:"alert_level_name"`
	DeviceName      string                     `json:"device_name"`
	PointName       string                     `json:"point_name"`
	DeviceTypeID    string                     `json:"device_type_id"`
	DeviceGroupID   string                     `json:"device_group_id"`
	DeviceAttr      map[string]any             `json:"device_attr"`
	Attributes      map[string]json.RawMessage `json:"attributes,omitempty"`
}

var alertInfoFields = newFieldTable(
	field{name: "alert_id", wire: []string{"id", "alertID", "alertId", "alert_id"}},
	plainField("status"),
	camelField("created_at", "createdAt"),
	plainField("title"),
	plainField("content"),
	idField("project_id", "project"),
	idField("device_id", "device"),
	idField("alert_type_id", "alertType"),
	idField("alert_level_id", "alertLevel"),
	camelField("rule_name", "ruleName"),
	camelField("alert_type_name", "alertTypeName"),
	camelField("alert_type_code", "alertTypeCode"),
	camelField("alert_level_code", "alertLevelCode"),
	camelField("alert_level_color", "alertLevelColor"),
	camelField("alert_level_name", "alertLevelName"),
	camelField("device_name", "deviceName"),
	camelField("point_name", "pointName"),
	idField("device_type_id", "deviceType"),
	idField("device_group_id", "deviceGroup"),
	camelField("device_attr", "deviceAttr"),
	// attributes is the normalized bag itself, so normalized JSON round-trips
	plainField("attributes"),
)

// Class implements Record
func (a AlertInfo) Class() subject.Class { return subject.ClassAlertInfo }

// Origin implements Record
func (a AlertInfo) Origin() string { return a.Subject }
