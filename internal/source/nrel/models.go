package nrel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"station_watch/internal/domain"
)

// ErrBadRecord marks a station record the feed delivered in a shape we
// cannot safely coerce. One bad record fails the whole batch; a partial
// import must not corrupt history.
var ErrBadRecord = errors.New("malformed station record")

// APIResponse is the NREL alt-fuel-stations document.
type APIResponse struct {
	TotalResults int       `json:"total_results"`
	FuelStations []Station `json:"fuel_stations"`
}

// Station is one raw feed record. Fields the upstream serves inconsistently
// (booleans as strings, coordinates as strings or numbers) are typed as any
// and coerced by Normalize.
type Station struct {
	ID                     int64               `json:"id"`
	AccessCode             *string             `json:"access_code"`
	AccessDaysTime         *string             `json:"access_days_time"`
	AccessDetailCode       *string             `json:"access_detail_code"`
	CardsAccepted          *string             `json:"cards_accepted"`
	DateLastConfirmed      *string             `json:"date_last_confirmed"`
	ExpectedDate           *string             `json:"expected_date"`
	FuelTypeCode           *string             `json:"fuel_type_code"`
	GroupsWithAccessCode   *string             `json:"groups_with_access_code"`
	MaximumVehicleClass    *string             `json:"maximum_vehicle_class"`
	OpenDate               *string             `json:"open_date"`
	OwnerTypeCode          *string             `json:"owner_type_code"`
	RestrictedAccess       any                 `json:"restricted_access"`
	StatusCode             *string             `json:"status_code"`
	FacilityType           *string             `json:"facility_type"`
	StationName            *string             `json:"station_name"`
	StationPhone           *string             `json:"station_phone"`
	UpdatedAt              *string             `json:"updated_at"`
	GeocodeStatus          *string             `json:"geocode_status"`
	Latitude               any                 `json:"latitude"`
	Longitude              any                 `json:"longitude"`
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

const dateLayout = "2006-01-02"

// Normalize coerces a raw feed record into the tracked field set. Any value
// that fails coercion returns an error wrapping ErrBadRecord.
func Normalize(raw *Station) (domain.StationFields, error) {
	f := domain.StationFields{
		ID:                     raw.ID,
		AccessCode:             raw.AccessCode,
		AccessDaysTime:         raw.AccessDaysTime,
		AccessDetailCode:       raw.AccessDetailCode,
		CardsAccepted:          raw.CardsAccepted,
		FuelTypeCode:           raw.FuelTypeCode,
		GroupsWithAccessCode:   raw.GroupsWithAccessCode,
		MaximumVehicleClass:    raw.MaximumVehicleClass,
		OwnerTypeCode:          raw.OwnerTypeCode,
		StatusCode:             raw.StatusCode,
		FacilityType:           raw.FacilityType,
		StationName:            raw.StationName,
		StationPhone:           raw.StationPhone,
		GeocodeStatus:          raw.GeocodeStatus,
		City:                   raw.City,
		Country:                raw.Country,
		IntersectionDirections: raw.IntersectionDirections,
		Plus4:                  raw.Plus4,
		State:                  raw.State,
		StreetAddress:          raw.StreetAddress,
		Zip:                    raw.Zip,
		EVConnectorTypes:       raw.EVConnectorTypes,
		EVDCFastNum:            raw.EVDCFastNum,
		EVLevel1EVSENum:        raw.EVLevel1EVSENum,
		EVLevel2EVSENum:        raw.EVLevel2EVSENum,
		EVNetwork:              raw.EVNetwork,
		EVNetworkWeb:           raw.EVNetworkWeb,
		EVOtherEVSE:            raw.EVOtherEVSE,
		EVPricing:              raw.EVPricing,
		EVRenewableSource:      raw.EVRenewableSource,
		EVWorkplaceCharging:    raw.EVWorkplaceCharging,
		EVNetworkIDs:           raw.EVNetworkIDs,
		NPSUnitName:            raw.NPSUnitName,
	}

	var err error
	if f.RestrictedAccess, err = coerceBool(raw.RestrictedAccess); err != nil {
		return f, badField(raw.ID, "restricted_access", err)
	}
	if f.OpenDate, err = coerceDate(raw.OpenDate); err != nil {
		return f, badField(raw.ID, "open_date", err)
	}
	if f.ExpectedDate, err = coerceDate(raw.ExpectedDate); err != nil {
		return f, badField(raw.ID, "expected_date", err)
	}
	if f.DateLastConfirmed, err = coerceDate(raw.DateLastConfirmed); err != nil {
		return f, badField(raw.ID, "date_last_confirmed", err)
	}
	if f.UpdatedAt, err = coerceDateTime(raw.UpdatedAt); err != nil {
		return f, badField(raw.ID, "updated_at", err)
	}
	if f.Latitude, err = coerceFloat(raw.Latitude); err != nil {
		return f, badField(raw.ID, "latitude", err)
	}
	if f.Longitude, err = coerceFloat(raw.Longitude); err != nil {
		return f, badField(raw.ID, "longitude", err)
	}
	return f, nil
}

func badField(id int64, field string, err error) error {
	return fmt.Errorf("station %d: %s: %w: %v", id, field, ErrBadRecord, err)
}

// coerceBool accepts bools and bool-ish strings. Any string other than
// "false" (case-insensitive) is true, matching how the feed reports
// restricted access.
func coerceBool(v any) (*bool, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &b, nil
	case string:
		val := !strings.EqualFold(b, "false")
		return &val, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}

func coerceDate(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func coerceDateTime(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func coerceFloat(v any) (*float64, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &n, nil
	case string:
		if n == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}
