package api

import (
	"net/http"

	"github.com/c360/topstack/client"
)

// VarNames selects global variables by name.
type VarNames struct {
	Names []string `json:"names"`
}

// Validate requires at least one name.
func (r VarNames) Validate() error {
	if len(r.Names) == 0 {
		return invalid("names", "must not be empty")
	}
	return nil
}

// GlobalVar is a named project-wide value.
type GlobalVar struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// VarUpdate sets global variables.
type VarUpdate struct {
	Vars []GlobalVar `json:"vars"`
}

// Validate requires named entries.
func (r VarUpdate) Validate() error {
	if len(r.Vars) == 0 {
		return invalid("vars", "must not be empty")
	}
	for _, v := range r.Vars {
		if err := required("name", v.Name); err != nil {
			return err
		}
	}
	return nil
}

// Global variable endpoints
var (
	GetGlobalVars = client.Endpoint[VarNames, []GlobalVar]{
		Name: "globalVar.get",
		Path: "/open_api/v1/global_var/get_value",
	}
	UpdateGlobalVars = client.Endpoint[VarUpdate, client.Empty]{
		Name:   "globalVar.update",
		Method: http.MethodPost,
		Path:   "/open_api/v1/global_var/update_value",
	}
)
