package testutil

// Wire payloads as the platform publishes them. Field names use the platform's
// camel casing; timestamps are UTC date-time strings.

// PointDataPayload is a point reading for device_001 with quality 1.
const PointDataPayload = `{
	"deviceID": "device_001",
	"pointID": "point_001",
	"value": 25.5,
	"quality": 1,
	"timestamp": "2024-01-01T12:00:00Z",
	"status": 0,
	"deviceTypeID": "type_001",
	"projectID": "project_001",
	"gatewayID": "gateway_001",
	"notSave": false
}`

// DeviceStatePayload reports device_001 online.
const DeviceStatePayload = `{
	"projectID": "project_001",
	"gatewayID": "gateway_001",
	"deviceID": "device_001",
	"state": 1,
	"timestamp": "2024-01-01T12:00:00Z"
}`

// GatewayStatePayload reports gateway_001 online.
const GatewayStatePayload = `{
	"sn": "GW001",
	"name": "gateway 1",
	"projectID": "project_001",
	"gatewayID": "gateway_001",
	"state": 1,
	"timestamp": "2024-01-01T12:00:00Z"
}`

// ChannelStatePayload reports channel_001 running and connected.
const ChannelStatePayload = `{
	"projectID": "project_001",
	"gatewayID": "gateway_001",
	"channelID": "channel_001",
	"running": true,
	"connected": true,
	"timestamp": "2024-01-01T12:00:00Z",
	"gatewayName": "gateway 1",
	"channelName": "channel 1"
}`

// AlertInfoPayload is an unhandled high-temperature alert on device_001.
const AlertInfoPayload = `{
	"id": "alert_001",
	"status": "unhandled",
	"createdAt": "2024-01-01T12:00:00Z",
	"title": "temperature too high",
	"content": "device temperature above threshold",
	"projectID": "project_001",
	"deviceID": "device_001",
	"alertTypeID": "type_001",
	"alertLevelID": "level_001",
	"alertLevelCode": "HIGH",
	"deviceAttr": {"location": "workshop A"}
}`

// Subjects the payloads above are published on under the default root.
const (
	PointDataSubject    = "iot.project_001.data.device_001.point_001"
	DeviceStateSubject  = "iot.project_001.device_state.device_001"
	GatewayStateSubject = "iot.project_001.gateway_state.gateway_001"
	ChannelStateSubject = "iot.project_001.channel_state.channel_001"
	AlertInfoSubject    = "iot.project_001.alert.device_001"
)

// MalformedPayload is not JSON.
const MalformedPayload = `{"deviceID": "device_001", "value": `

// BadTimestampPayload carries a timestamp without a UTC designator.
const BadTimestampPayload = `{"deviceID": "device_001", "pointID": "p", "timestamp": "2024-01-01 12:00:00"}`
