package api

import (
	"net/http"
	"time"

	"github.com/c360/topstack/client"
	"github.com/c360/topstack/envelope"
)

const emsPrefix = "/ems/open_api/v1"

// EnergyQuery filters meters, sectors or subentries.
type EnergyQuery struct {
	PageRequest
	Search     string `json:"search,omitempty"`
	EnergyType string `json:"energyType,omitempty"`
}

// EnergyNode is a meter, sector or subentry.
type EnergyNode struct {
	ID         string `json:"id"`
	Code       string `json:"code,omitempty"`
	Name       string `json:"name"`
	EnergyType string `json:"energyType,omitempty"`
	ParentID   string `json:"parentID,omitempty"`
}

// ReportQuery asks for hourly consumption of the given nodes over [Start, End].
type ReportQuery struct {
	IDs   []string  `json:"ids"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate requires ids and an ordered range.
func (q ReportQuery) Validate() error {
	if len(q.IDs) == 0 {
		return invalid("ids", "must not be empty")
	}
	if q.Start.IsZero() || q.End.IsZero() {
		return invalid("start", "start and end are required")
	}
	if q.End.Before(q.Start) {
		return invalid("end", "must not precede start")
	}
	return nil
}

// ReportRow is the consumption of one node in one hour.
type ReportRow struct {
	ID    string    `json:"id"`
	Name  string    `json:"name,omitempty"`
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

func energyQuery(kind string) client.Endpoint[EnergyQuery, envelope.Page[EnergyNode]] {
	return client.Endpoint[EnergyQuery, envelope.Page[EnergyNode]]{
		Name:   "ems." + kind + ".query",
		Method: http.MethodPost,
		Path:   emsPrefix + "/" + kind + "/query",
	}
}

func hourlyReport(kind string) client.Endpoint[ReportQuery, []ReportRow] {
	return client.Endpoint[ReportQuery, []ReportRow]{
		Name: "ems.report." + kind + ".hourly",
		Path: emsPrefix + "/report/" + kind + "/hourly",
	}
}

// EMS endpoints
var (
	QueryMeters     = energyQuery("meter")
	QuerySectors    = energyQuery("sector")
	QuerySubentries = energyQuery("subentry")

	MeterHourly    = hourlyReport("meter")
	SectorHourly   = hourlyReport("sector")
	SubentryHourly = hourlyReport("subentry")
)
