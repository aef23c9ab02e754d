// Package model defines the core data types for the CRM service.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."` and
// `db:"..."` annotations) tell serialization libraries how to map fields.
package model

// Unknown is reported for commercial fields the LLM could not provide.
const Unknown = "unknown"

// MaterialQuery is one unit of fan-out work: how much of a material a device holds.
type MaterialQuery struct {
	MaterialID string
	DeviceID   string
}

// Vars returns the prompt variables for the material-amount template.
func (q MaterialQuery) Vars() map[string]string {
	return map[string]string{
		"material": q.MaterialID,
		"device":   q.DeviceID,
	}
}

// MaterialEstimate is the outcome of a single material query.
// Valid is false when the query failed; AmountGrams is then meaningless,
// but the entry still carries its material so callers can tell
// "estimated as zero" apart from "estimation failed".
type MaterialEstimate struct {
	MaterialID  string  `json:"materialCode"`
	AmountGrams float64 `json:"amount"`
	Valid       bool    `json:"valid"`
}

// InvalidEstimate returns the sentinel entry for a failed material query.
func InvalidEstimate(materialID string) MaterialEstimate {
	return MaterialEstimate{MaterialID: materialID}
}

// CommercialInfo is the commercial identity of a device.
type CommercialInfo struct {
	Manufacturer   string `json:"manufacturer"`
	CommercialName string `json:"commercialName"`
}

// UnknownCommercialInfo is used when the commercial-info query fails.
func UnknownCommercialInfo() CommercialInfo {
	return CommercialInfo{Manufacturer: Unknown, CommercialName: Unknown}
}

// DeviceReport is the consolidated answer for one device.
// CO2Kg is nil when the carbon footprint could not be estimated; it
// serializes as null.
type DeviceReport struct {
	DeviceID       string             `json:"name"`
	Materials      []MaterialEstimate `json:"materials"`
	CO2Kg          *float64           `json:"co2Emission"`
	Manufacturer   string             `json:"manufacturer"`
	CommercialName string             `json:"commercialName"`
}

// TotalMassGrams sums the valid material estimates. Invalid entries never count.
func (r *DeviceReport) TotalMassGrams() float64 {
	var total float64
	for _, m := range r.Materials {
		if m.Valid {
			total += m.AmountGrams
		}
	}
	return total
}

// ValidCount returns how many material estimates succeeded.
func (r *DeviceReport) ValidCount() int {
	n := 0
	for _, m := range r.Materials {
		if m.Valid {
			n++
		}
	}
	return n
}

// InvalidCount returns how many material estimates failed.
func (r *DeviceReport) InvalidCount() int {
	return len(r.Materials) - r.ValidCount()
}
