package domain

import (
	"strings"
	"time"
)

// StationFields is the tracked subset of an upstream station record. A
// change to any of these fields is a substantive change that appends a
// history snapshot, except for the fields in NoHistoryFields.
type StationFields struct {
	ID                     int64               `json:"id"`
	AccessCode             *string             `json:"access_code"`
	AccessDaysTime         *string             `json:"access_days_time"`
	AccessDetailCode       *string             `json:"access_detail_code"`
	CardsAccepted          *string             `json:"cards_accepted"`
	DateLastConfirmed      *time.Time          `json:"date_last_confirmed"`
	ExpectedDate           *time.Time          `json:"expected_date"`
	FuelTypeCode           *string             `json:"fuel_type_code"`
	GroupsWithAccessCode   *string             `json:"groups_with_access_code"`
	MaximumVehicleClass    *string             `json:"maximum_vehicle_class"`
	OpenDate               *time.Time          `json:"open_date"`
	OwnerTypeCode          *string             `json:"owner_type_code"`
	RestrictedAccess       *bool               `json:"restricted_access"`
	StatusCode             *string             `json:"status_code"`
	FacilityType           *string             `json:"facility_type"`
	StationName            *string             `json:"station_name"`
	StationPhone           *string             `json:"station_phone"`
	UpdatedAt              *time.Time          `json:"updated_at"`
	GeocodeStatus          *string             `json:"geocode_status"`
	Latitude               *float64            `json:"latitude"`
	Longitude              *float64            `json:"longitude"`
	City                   *string             `json:"city"`
	Country                *string             `json:"country"`
	IntersectionDirections *string             `json:"intersection_directions"`
	Plus4                  *string             `json:"plus4"`
	State                  *string             `json:"state"`
	StreetAddress          *string             `json:"street_address"`
	Zip                    *string             `json:"zip"`
	EVConnectorTypes       []string            `json:"ev_connector_types"`
	EVDCFastNum            *int64              `json:"ev_dc_fast_num"`
	EVLevel1EVSENum        *int64              `json:"ev_level1_evse_num"`
	EVLevel2EVSENum        *int64              `json:"ev_level2_evse_num"`
	EVNetwork              *string             `json:"ev_network"`
	EVNetworkWeb           *string             `json:"ev_network_web"`
	EVOtherEVSE            *string             `json:"ev_other_evse"`
	EVPricing              *string             `json:"ev_pricing"`
	EVRenewableSource      *string             `json:"ev_renewable_source"`
	EVWorkplaceCharging    *bool               `json:"ev_workplace_charging"`
	EVNetworkIDs           map[string][]string `json:"ev_network_ids"`
	NPSUnitName            *string             `json:"nps_unit_name"`
}

// NoHistoryFields are upstream heartbeat fields that change on nearly every
// sync. Saving a station whose only changes are in this set must not append
// a history snapshot or produce an Update.
var NoHistoryFields = map[string]bool{
	"updated_at":          true,
	"date_last_confirmed": true,
}

// Station is a charging site tracked from the upstream feed. BeaconName is
// the generated human-readable slug; LinkedTo points at the canonical
// station when this record duplicates another physical site.
type Station struct {
	StationFields
	BeaconName string
	LinkedTo   *int64
}

// Snapshot is the state of a station as recorded in its history and in
// Update current/previous payloads. Geometry and linkage bookkeeping are
// deliberately absent.
type Snapshot struct {
	StationFields
	BeaconName string `json:"beacon_name"`
}

// HistoryEntry is one append-only history row, newest first when listed.
type HistoryEntry struct {
	Snapshot   Snapshot
	RecordedAt time.Time
}

// NetworkCount is one row of the distinct-network census over canonical
// stations.
type NetworkCount struct {
	Network string
	Count   int
}

// Snapshot returns the station's current tracked state.
func (s *Station) Snapshot() Snapshot {
	return Snapshot{StationFields: s.StationFields, BeaconName: s.BeaconName}
}

// HasPoint reports whether the station has a usable geolocation.
func (f *StationFields) HasPoint() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// DuplicateKey groups stations that describe the same physical site across
// feed revisions: same network at the same street address.
func (f *StationFields) DuplicateKey() string {
	return strings.ToLower(strResolve(f.EVNetwork) + ": " + strResolve(f.StreetAddress) + ", " +
		strResolve(f.City) + ", " + strResolve(f.State))
}

// NetworkHandle returns the network name as a URL-safe handle.
func (f *StationFields) NetworkHandle() string {
	return NetworkHandle(strResolve(f.EVNetwork))
}

// NetworkHandle lowercases a network name and replaces spaces with dashes;
// empty names map to "none".
func NetworkHandle(network string) string {
	if network == "" {
		return "none"
	}
	return strings.ReplaceAll(strings.ToLower(network), " ", "-")
}

// StateHandle lowercases a state abbreviation; empty states map to "na".
func StateHandle(state string) string {
	if state == "" {
		return "na"
	}
	return strings.ToLower(state)
}

// FullAddress renders the one-line postal address.
func (f *StationFields) FullAddress() string {
	return strResolve(f.StreetAddress) + ", " + strResolve(f.City) + ", " +
		strResolve(f.State) + " " + strResolve(f.Zip)
}

// Diff returns the names of tracked fields whose values differ between the
// two field sets. Nil and empty string are distinct values; times compare
// by instant.
func (f *StationFields) Diff(other *StationFields) []string {
	var changed []string
	add := func(name string, same bool) {
		if !same {
			changed = append(changed, name)
		}
	}
	add("access_code", eqStr(f.AccessCode, other.AccessCode))
	add("access_days_time", eqStr(f.AccessDaysTime, other.AccessDaysTime))
	add("access_detail_code", eqStr(f.AccessDetailCode, other.AccessDetailCode))
	add("cards_accepted", eqStr(f.CardsAccepted, other.CardsAccepted))
	add("date_last_confirmed", eqTime(f.DateLastConfirmed, other.DateLastConfirmed))
	add("expected_date", eqTime(f.ExpectedDate, other.ExpectedDate))
	add("fuel_type_code", eqStr(f.FuelTypeCode, other.FuelTypeCode))
	add("groups_with_access_code", eqStr(f.GroupsWithAccessCode, other.GroupsWithAccessCode))
	add("maximum_vehicle_class", eqStr(f.MaximumVehicleClass, other.MaximumVehicleClass))
	add("open_date", eqTime(f.OpenDate, other.OpenDate))
	add("owner_type_code", eqStr(f.OwnerTypeCode, other.OwnerTypeCode))
	add("restricted_access", eqBool(f.RestrictedAccess, other.RestrictedAccess))
	add("status_code", eqStr(f.StatusCode, other.StatusCode))
	add("facility_type", eqStr(f.FacilityType, other.FacilityType))
	add("station_name", eqStr(f.StationName, other.StationName))
	add("station_phone", eqStr(f.StationPhone, other.StationPhone))
	add("updated_at", eqTime(f.UpdatedAt, other.UpdatedAt))
	add("geocode_status", eqStr(f.GeocodeStatus, other.GeocodeStatus))
	add("latitude", eqFloat(f.Latitude, other.Latitude))
	add("longitude", eqFloat(f.Longitude, other.Longitude))
	add("city", eqStr(f.City, other.City))
	add("country", eqStr(f.Country, other.Country))
	add("intersection_directions", eqStr(f.IntersectionDirections, other.IntersectionDirections))
	add("plus4", eqStr(f.Plus4, other.Plus4))
	add("state", eqStr(f.State, other.State))
	add("street_address", eqStr(f.StreetAddress, other.StreetAddress))
	add("zip", eqStr(f.Zip, other.Zip))
	add("ev_connector_types", eqStrSlice(f.EVConnectorTypes, other.EVConnectorTypes))
	add("ev_dc_fast_num", eqInt(f.EVDCFastNum, other.EVDCFastNum))
	add("ev_level1_evse_num", eqInt(f.EVLevel1EVSENum, other.EVLevel1EVSENum))
	add("ev_level2_evse_num", eqInt(f.EVLevel2EVSENum, other.EVLevel2EVSENum))
	add("ev_network", eqStr(f.EVNetwork, other.EVNetwork))
	add("ev_network_web", eqStr(f.EVNetworkWeb, other.EVNetworkWeb))
	add("ev_other_evse", eqStr(f.EVOtherEVSE, other.EVOtherEVSE))
	add("ev_pricing", eqStr(f.EVPricing, other.EVPricing))
	add("ev_renewable_source", eqStr(f.EVRenewableSource, other.EVRenewableSource))
	add("ev_workplace_charging", eqBool(f.EVWorkplaceCharging, other.EVWorkplaceCharging))
	add("ev_network_ids", eqNetworkIDs(f.EVNetworkIDs, other.EVNetworkIDs))
	add("nps_unit_name", eqStr(f.NPSUnitName, other.NPSUnitName))
	return changed
}

func strResolve(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func eqStrSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func eqNetworkIDs(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !eqStrSlice(av, bv) {
			return false
		}
	}
	return true
}
