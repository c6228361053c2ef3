package api

import (
	"github.com/c360/topstack/client"
	"github.com/c360/topstack/envelope"
)

// DeviceQuery filters the device list. Search matches code or name.
type DeviceQuery struct {
	PageRequest
	Search       string `json:"search,omitempty"`
	DeviceTypeID string `json:"deviceTypeID,omitempty"`
	GatewayID    string `json:"gatewayID,omitempty"`
	GroupID      string `json:"groupID,omitempty"`
}

// Device is a registered device.
type Device struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	ConnectMode  string `json:"connectMode"`
	State        int    `json:"state"`
	DeviceTypeID string `json:"deviceTypeID,omitempty"`
	GatewayID    string `json:"gatewayID,omitempty"`
}

// DeviceRef selects a single device.
type DeviceRef struct {
	DeviceID string `json:"deviceID"`
}

// Validate requires the device identifier.
func (r DeviceRef) Validate() error { return required("deviceID", r.DeviceID) }

// Point describes one point (property) of a device.
type Point struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Unit     string `json:"unit,omitempty"`
	ReadOnly bool   `json:"readOnly,omitempty"`
}

// NameQuery is a paged search by name.
type NameQuery struct {
	PageRequest
	Search string `json:"search,omitempty"`
}

// DeviceType is a device template.
type DeviceType struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}

// DeviceGroup is a node of the device group tree.
type DeviceGroup struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	ParentID string        `json:"parentID,omitempty"`
	Children []DeviceGroup `json:"children,omitempty"`
}

// Gateway is an edge gateway.
type Gateway struct {
	ID    string `json:"id"`
	Code  string `json:"code,omitempty"`
	Name  string `json:"name"`
	State int    `json:"state"`
}

// Device endpoints
var (
	QueryDevices = client.Endpoint[DeviceQuery, envelope.Page[Device]]{
		Name: "iot.device.query",
		Path: iotPrefix + "/device/query",
	}
	DevicePoints = client.Endpoint[DeviceRef, []Point]{
		Name: "iot.device.points",
		Path: iotPrefix + "/device/points",
	}
	QueryDeviceTypes = client.Endpoint[NameQuery, envelope.Page[DeviceType]]{
		Name: "iot.deviceType.query",
		Path: iotPrefix + "/device_type/query",
	}
	DeviceGroups = client.Endpoint[client.Empty, []DeviceGroup]{
		Name: "iot.deviceGroup.all",
		Path: iotPrefix + "/device_group/all",
	}
	QueryGateways = client.Endpoint[NameQuery, envelope.Page[Gateway]]{
		Name: "iot.gateway.query",
		Path: iotPrefix + "/gateway/query",
	}
)
