package api

import (
	"time"

	"github.com/c360/topstack/client"
	"github.com/c360/topstack/envelope"
)

const assetPrefix = "/asset/open_api/v1"

// WorkOrderQuery filters work orders of any kind.
type WorkOrderQuery struct {
	PageRequest
	Search string `json:"search,omitempty"`
	Status string `json:"status,omitempty"`
}

// WorkOrder is the common shape of the four work order kinds.
type WorkOrder struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Assignee  string    `json:"assignee,omitempty"`
	AssetID   string    `json:"assetID,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkOrderKind selects one of the asset module's work order lists.
type WorkOrderKind string

// Work order kinds
const (
	AlertWorkOrder       WorkOrderKind = "alert"
	LocaleWorkOrder      WorkOrderKind = "locale"
	MaintenanceWorkOrder WorkOrderKind = "maintenance"
	ScheduleWorkOrder    WorkOrderKind = "schedule"
)

func workOrders(kind WorkOrderKind) client.Endpoint[WorkOrderQuery, envelope.Page[WorkOrder]] {
	return client.Endpoint[WorkOrderQuery, envelope.Page[WorkOrder]]{
		Name: "asset." + string(kind) + "WorkOrder",
		Path: assetPrefix + "/" + string(kind) + "_work_order",
	}
}

// Work order endpoints
var (
	AlertWorkOrders       = workOrders(AlertWorkOrder)
	LocaleWorkOrders      = workOrders(LocaleWorkOrder)
	MaintenanceWorkOrders = workOrders(MaintenanceWorkOrder)
	ScheduleWorkOrders    = workOrders(ScheduleWorkOrder)
)

// WorkOrders returns the endpoint for kind, or false for an unknown kind.
func WorkOrders(kind WorkOrderKind) (client.Endpoint[WorkOrderQuery, envelope.Page[WorkOrder]], bool) {
	switch kind {
	case AlertWorkOrder:
		return AlertWorkOrders, true
	case LocaleWorkOrder:
		return LocaleWorkOrders, true
	case MaintenanceWorkOrder:
		return MaintenanceWorkOrders, true
	case ScheduleWorkOrder:
		return ScheduleWorkOrders, true
	default:
		return client.Endpoint[WorkOrderQuery, envelope.Page[WorkOrder]]{}, false
	}
}
