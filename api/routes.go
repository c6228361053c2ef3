package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/c360/topstack/client"
)

// Route describes an endpoint without its types.
type Route struct {
	Name   string
	Method string
	Path   string
}

func route[Req, Resp any](e client.Endpoint[Req, Resp]) Route {
	method := e.Method
	if method == "" {
		method = http.MethodGet
	}
	return Route{Name: e.Name, Method: method, Path: e.Path}
}

// Routes lists every endpoint of the catalog ordered by name.
func Routes() []Route {
	routes := []Route{
		route(FindLast), route(FindLastBatch), route(SetValue), route(QueryHistory),
		route(QueryDevices), route(DevicePoints), route(QueryDeviceTypes), route(DeviceGroups), route(QueryGateways),
		route(AlertLevels), route(AlertTypes), route(AlertRecords), route(AlertRecordActivity),
		route(AlertWorkOrders), route(LocaleWorkOrders), route(MaintenanceWorkOrders), route(ScheduleWorkOrders),
		route(QueryMeters), route(QuerySectors), route(QuerySubentries),
		route(MeterHourly), route(SectorHourly), route(SubentryHourly),
		route(GetGlobalVars), route(UpdateGlobalVars),
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Name < routes[j].Name })
	return routes
}

// Lookup finds a route by name, ignoring case.
func Lookup(name string) (Route, bool) {
	for _, r := range Routes() {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Route{}, false
}
