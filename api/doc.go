// Package api is the catalog of TopStack platform endpoints.
//
// Every endpoint is a client.Endpoint value: a path, a method and the request
// and response shapes. Calls go through any client.Caller, usually *client.Client:
//
//	last, err := api.FindLast.Do(ctx, c, api.PointRef{DeviceID: "dev1", PointID: "v1"})
//
// List endpoints take a request embedding PageRequest and answer with an
// envelope.Page. Page numbers start at 1.
//
// The catalog covers the iot, alert, asset and ems modules plus the global
// variable store. Routes lists every descriptor for tooling; PageURL builds the
// address of a DataV visualization page.
package api
