// Package render converts raw update diffs into display form and renders
// notification roll-up messages.
package render

import (
	"strconv"
	"strings"
	"time"

	"station_watch/internal/domain"
)

// Change is one human-readable field change between an update's previous
// and current snapshots.
type Change struct {
	Field     string
	FieldName string
	Previous  string
	Current   string
}

// ignoredFields are noisy or internal fields never shown to users.
var ignoredFields = map[string]bool{
	"updated_at":          true,
	"date_last_confirmed": true,
	"ev_network_ids":      true,
	"beacon_name":         true,
}

// Changes diffs an update's snapshots into display form. Creation events
// have no previous snapshot and render empty. List-valued fields report
// only element replacements; additions and removals are not interesting.
func Changes(upd *domain.Update) []Change {
	if upd.Previous == nil {
		return nil
	}

	prev := fieldValues(upd.Previous)
	curr := fieldValues(&upd.Current)

	var changes []Change
	for i, pv := range prev {
		cv := curr[i]
		if ignoredFields[pv.name] {
			continue
		}
		if pv.list && pv.count != cv.count {
			continue
		}
		if pv.value == cv.value {
			continue
		}
		changes = append(changes, Change{
			Field:     pv.name,
			FieldName: displayName(pv.name),
			Previous:  renderField(pv.name, pv.value),
			Current:   renderField(pv.name, cv.value),
		})
	}
	return changes
}

// renderField translates a raw value through the lookup table for its
// field, if one exists. Accepted cards are a whitespace-separated token
// list; each token translates individually.
func renderField(field, value string) string {
	if field == "cards_accepted" {
		tokens := strings.Fields(value)
		for i, t := range tokens {
			if label, ok := Lookups["cards_accepted"][t]; ok {
				tokens[i] = label
			}
		}
		return strings.Join(tokens, ", ")
	}
	if table, ok := Lookups[field]; ok {
		if label, ok := table[value]; ok {
			return label
		}
	}
	return value
}

func displayName(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

type fieldValue struct {
	name  string
	value string
	list  bool
	count int
}

// fieldValues flattens a snapshot into an ordered, stringly-rendered field
// list. The order here fixes the order changes appear in notifications.
func fieldValues(s *domain.Snapshot) []fieldValue {
	return []fieldValue{
		{name: "station_name", value: str(s.StationName)},
		{name: "status_code", value: str(s.StatusCode)},
		{name: "access_code", value: str(s.AccessCode)},
		{name: "access_days_time", value: str(s.AccessDaysTime)},
		{name: "access_detail_code", value: str(s.AccessDetailCode)},
		{name: "groups_with_access_code", value: str(s.GroupsWithAccessCode)},
		{name: "restricted_access", value: boolean(s.RestrictedAccess)},
		{name: "cards_accepted", value: str(s.CardsAccepted)},
		{name: "ev_connector_types", value: strings.Join(s.EVConnectorTypes, ", "), list: true, count: len(s.EVConnectorTypes)},
		{name: "ev_dc_fast_num", value: integer(s.EVDCFastNum)},
		{name: "ev_level1_evse_num", value: integer(s.EVLevel1EVSENum)},
		{name: "ev_level2_evse_num", value: integer(s.EVLevel2EVSENum)},
		{name: "ev_other_evse", value: str(s.EVOtherEVSE)},
		{name: "ev_network", value: str(s.EVNetwork)},
		{name: "ev_network_web", value: str(s.EVNetworkWeb)},
		{name: "ev_pricing", value: str(s.EVPricing)},
		{name: "ev_renewable_source", value: str(s.EVRenewableSource)},
		{name: "ev_workplace_charging", value: boolean(s.EVWorkplaceCharging)},
		{name: "fuel_type_code", value: str(s.FuelTypeCode)},
		{name: "owner_type_code", value: str(s.OwnerTypeCode)},
		{name: "facility_type", value: str(s.FacilityType)},
		{name: "maximum_vehicle_class", value: str(s.MaximumVehicleClass)},
		{name: "station_phone", value: str(s.StationPhone)},
		{name: "open_date", value: date(s.OpenDate)},
		{name: "expected_date", value: date(s.ExpectedDate)},
		{name: "street_address", value: str(s.StreetAddress)},
		{name: "intersection_directions", value: str(s.IntersectionDirections)},
		{name: "city", value: str(s.City)},
		{name: "state", value: str(s.State)},
		{name: "zip", value: str(s.Zip)},
		{name: "plus4", value: str(s.Plus4)},
		{name: "country", value: str(s.Country)},
		{name: "latitude", value: float(s.Latitude)},
		{name: "longitude", value: float(s.Longitude)},
		{name: "geocode_status", value: str(s.GeocodeStatus)},
		{name: "nps_unit_name", value: str(s.NPSUnitName)},
		{name: "date_last_confirmed", value: date(s.DateLastConfirmed)},
		{name: "updated_at", value: datetime(s.UpdatedAt)},
		{name: "beacon_name", value: s.BeaconName},
	}
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func boolean(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func integer(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func date(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02")
}

func datetime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
