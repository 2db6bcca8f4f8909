package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"station_watch/internal/domain"
)

// StationStore persists stations and their append-only history. Every save
// that records history appends exactly one snapshot row; heartbeat-only
// saves and linking updates leave history untouched.
type StationStore struct {
	db *sqlx.DB
}

func NewStationStore(db *sqlx.DB) *StationStore {
	return &StationStore{db: db}
}

const stationColumns = `
	id, beacon_name, access_code, access_days_time, access_detail_code,
	cards_accepted, date_last_confirmed, expected_date, fuel_type_code,
	groups_with_access_code, maximum_vehicle_class, open_date,
	owner_type_code, restricted_access, status_code, facility_type,
	station_name, station_phone, updated_at, geocode_status, latitude,
	longitude, city, country, intersection_directions, plus4, state,
	street_address, zip, ev_connector_types, ev_dc_fast_num,
	ev_level1_evse_num, ev_level2_evse_num, ev_network, ev_network_web,
	ev_other_evse, ev_pricing, ev_renewable_source, ev_workplace_charging,
	ev_network_ids, nps_unit_name, linked_to`

// pointExpr keeps the PostGIS point column in step with the tracked
// latitude/longitude fields.
const pointExpr = `CASE
		WHEN CAST(:latitude AS double precision) IS NOT NULL AND CAST(:longitude AS double precision) IS NOT NULL
		THEN ST_SetSRID(ST_MakePoint(CAST(:longitude AS double precision), CAST(:latitude AS double precision)), 4326)
	END`

type stationRow struct {
	ID                     int64          `db:"id"`
	BeaconName             string         `db:"beacon_name"`
	AccessCode             *string        `db:"access_code"`
	AccessDaysTime         *string        `db:"access_days_time"`
	AccessDetailCode       *string        `db:"access_detail_code"`
	CardsAccepted          *string        `db:"cards_accepted"`
	DateLastConfirmed      *time.Time     `db:"date_last_confirmed"`
	ExpectedDate           *time.Time     `db:"expected_date"`
	FuelTypeCode           *string        `db:"fuel_type_code"`
	GroupsWithAccessCode   *string        `db:"groups_with_access_code"`
	MaximumVehicleClass    *string        `db:"maximum_vehicle_class"`
	OpenDate               *time.Time     `db:"open_date"`
	OwnerTypeCode          *string        `db:"owner_type_code"`
	RestrictedAccess       *bool          `db:"restricted_access"`
	StatusCode             *string        `db:"status_code"`
	FacilityType           *string        `db:"facility_type"`
	StationName            *string        `db:"station_name"`
	StationPhone           *string        `db:"station_phone"`
	UpdatedAt              *time.Time     `db:"updated_at"`
	GeocodeStatus          *string        `db:"geocode_status"`
	Latitude               *float64       `db:"latitude"`
	Longitude              *float64       `db:"longitude"`
	City                   *string        `db:"city"`
	Country                *string        `db:"country"`
	IntersectionDirections *string        `db:"intersection_directions"`
	Plus4                  *string        `db:"plus4"`
	State                  *string        `db:"state"`
	StreetAddress          *string        `db:"street_address"`
	Zip                    *string        `db:"zip"`
	EVConnectorTypes       pq.StringArray `db:"ev_connector_types"`
	EVDCFastNum            *int64         `db:"ev_dc_fast_num"`
	EVLevel1EVSENum        *int64         `db:"ev_level1_evse_num"`
	EVLevel2EVSENum        *int64         `db:"ev_level2_evse_num"`
	EVNetwork              *string        `db:"ev_network"`
	EVNetworkWeb           *string        `db:"ev_network_web"`
	EVOtherEVSE            *string        `db:"ev_other_evse"`
	EVPricing              *string        `db:"ev_pricing"`
	EVRenewableSource      *string        `db:"ev_renewable_source"`
	EVWorkplaceCharging    *bool          `db:"ev_workplace_charging"`
	EVNetworkIDs           []byte         `db:"ev_network_ids"`
	NPSUnitName            *string        `db:"nps_unit_name"`
	LinkedTo               *int64         `db:"linked_to"`
}

func toRow(st *domain.Station) (*stationRow, error) {
	row := &stationRow{
		ID:                     st.ID,
		BeaconName:             st.BeaconName,
		AccessCode:             st.AccessCode,
		AccessDaysTime:         st.AccessDaysTime,
		AccessDetailCode:       st.AccessDetailCode,
		CardsAccepted:          st.CardsAccepted,
		DateLastConfirmed:      st.DateLastConfirmed,
		ExpectedDate:           st.ExpectedDate,
		FuelTypeCode:           st.FuelTypeCode,
		GroupsWithAccessCode:   st.GroupsWithAccessCode,
		MaximumVehicleClass:    st.MaximumVehicleClass,
		OpenDate:               st.OpenDate,
		OwnerTypeCode:          st.OwnerTypeCode,
		RestrictedAccess:       st.RestrictedAccess,
		StatusCode:             st.StatusCode,
		FacilityType:           st.FacilityType,
		StationName:            st.StationName,
		StationPhone:           st.StationPhone,
		UpdatedAt:              st.UpdatedAt,
		GeocodeStatus:          st.GeocodeStatus,
		Latitude:               st.Latitude,
		Longitude:              st.Longitude,
		City:                   st.City,
		Country:                st.Country,
		IntersectionDirections: st.IntersectionDirections,
		Plus4:                  st.Plus4,
		State:                  st.State,
		StreetAddress:          st.StreetAddress,
		Zip:                    st.Zip,
		EVConnectorTypes:       pq.StringArray(st.EVConnectorTypes),
		EVDCFastNum:            st.EVDCFastNum,
		EVLevel1EVSENum:        st.EVLevel1EVSENum,
		EVLevel2EVSENum:        st.EVLevel2EVSENum,
		EVNetwork:              st.EVNetwork,
		EVNetworkWeb:           st.EVNetworkWeb,
		EVOtherEVSE:            st.EVOtherEVSE,
		EVPricing:              st.EVPricing,
		EVRenewableSource:      st.EVRenewableSource,
		EVWorkplaceCharging:    st.EVWorkplaceCharging,
		NPSUnitName:            st.NPSUnitName,
		LinkedTo:               st.LinkedTo,
	}
	if st.EVNetworkIDs != nil {
		data, err := json.Marshal(st.EVNetworkIDs)
		if err != nil {
			return nil, fmt.Errorf("marshal ev_network_ids: %w", err)
		}
		row.EVNetworkIDs = data
	}
	return row, nil
}

func (r *stationRow) toDomain() (*domain.Station, error) {
	st := &domain.Station{
		StationFields: domain.StationFields{
			ID:                     r.ID,
			AccessCode:             r.AccessCode,
			AccessDaysTime:         r.AccessDaysTime,
			AccessDetailCode:       r.AccessDetailCode,
			CardsAccepted:          r.CardsAccepted,
			DateLastConfirmed:      r.DateLastConfirmed,
			ExpectedDate:           r.ExpectedDate,
			FuelTypeCode:           r.FuelTypeCode,
			GroupsWithAccessCode:   r.GroupsWithAccessCode,
			MaximumVehicleClass:    r.MaximumVehicleClass,
			OpenDate:               r.OpenDate,
			OwnerTypeCode:          r.OwnerTypeCode,
			RestrictedAccess:       r.RestrictedAccess,
			StatusCode:             r.StatusCode,
			FacilityType:           r.FacilityType,
			StationName:            r.StationName,
			StationPhone:           r.StationPhone,
			UpdatedAt:              r.UpdatedAt,
			GeocodeStatus:          r.GeocodeStatus,
			Latitude:               r.Latitude,
			Longitude:              r.Longitude,
			City:                   r.City,
			Country:                r.Country,
			IntersectionDirections: r.IntersectionDirections,
			Plus4:                  r.Plus4,
			State:                  r.State,
			StreetAddress:          r.StreetAddress,
			Zip:                    r.Zip,
			EVConnectorTypes:       []string(r.EVConnectorTypes),
			EVDCFastNum:            r.EVDCFastNum,
			EVLevel1EVSENum:        r.EVLevel1EVSENum,
			EVLevel2EVSENum:        r.EVLevel2EVSENum,
			EVNetwork:              r.EVNetwork,
			EVNetworkWeb:           r.EVNetworkWeb,
			EVOtherEVSE:            r.EVOtherEVSE,
			EVPricing:              r.EVPricing,
			EVRenewableSource:      r.EVRenewableSource,
			EVWorkplaceCharging:    r.EVWorkplaceCharging,
			NPSUnitName:            r.NPSUnitName,
		},
		BeaconName: r.BeaconName,
		LinkedTo:   r.LinkedTo,
	}
	if len(r.EVNetworkIDs) > 0 {
		if err := json.Unmarshal(r.EVNetworkIDs, &st.EVNetworkIDs); err != nil {
			return nil, fmt.Errorf("unmarshal ev_network_ids: %w", err)
		}
	}
	return st, nil
}

// Get loads one station. Returns (nil, nil) when the station does not
// exist; an absent station is a normal import outcome, not an error.
func (s *StationStore) Get(ctx context.Context, id int64) (*domain.Station, error) {
	var row stationRow
	query := `SELECT ` + stationColumns + ` FROM stations WHERE id = $1`

	err := sqlx.GetContext(ctx, executor(ctx, s.db), &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// All loads every station, linked or not.
func (s *StationStore) All(ctx context.Context) ([]domain.Station, error) {
	var rows []stationRow
	query := `SELECT ` + stationColumns + ` FROM stations ORDER BY id`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows, query); err != nil {
		return nil, err
	}

	stations := make([]domain.Station, 0, len(rows))
	for i := range rows {
		st, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		stations = append(stations, *st)
	}
	return stations, nil
}

// Create inserts a station and its first history snapshot.
func (s *StationStore) Create(ctx context.Context, st *domain.Station) error {
	row, err := toRow(st)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO stations (
			id, beacon_name, access_code, access_days_time, access_detail_code,
			cards_accepted, date_last_confirmed, expected_date, fuel_type_code,
			groups_with_access_code, maximum_vehicle_class, open_date,
			owner_type_code, restricted_access, status_code, facility_type,
			station_name, station_phone, updated_at, geocode_status, latitude,
			longitude, city, country, intersection_directions, plus4, state,
			street_address, zip, ev_connector_types, ev_dc_fast_num,
			ev_level1_evse_num, ev_level2_evse_num, ev_network, ev_network_web,
			ev_other_evse, ev_pricing, ev_renewable_source, ev_workplace_charging,
			ev_network_ids, nps_unit_name, linked_to, point
		) VALUES (
			:id, :beacon_name, :access_code, :access_days_time, :access_detail_code,
			:cards_accepted, :date_last_confirmed, :expected_date, :fuel_type_code,
			:groups_with_access_code, :maximum_vehicle_class, :open_date,
			:owner_type_code, :restricted_access, :status_code, :facility_type,
			:station_name, :station_phone, :updated_at, :geocode_status, :latitude,
			:longitude, :city, :country, :intersection_directions, :plus4, :state,
			:street_address, :zip, :ev_connector_types, :ev_dc_fast_num,
			:ev_level1_evse_num, :ev_level2_evse_num, :ev_network, :ev_network_web,
			:ev_other_evse, :ev_pricing, :ev_renewable_source, :ev_workplace_charging,
			:ev_network_ids, :nps_unit_name, :linked_to, ` + pointExpr + `
		)`

	if _, err := sqlx.NamedExecContext(ctx, executor(ctx, s.db), query, row); err != nil {
		return fmt.Errorf("insert station: %w", err)
	}
	return s.appendHistory(ctx, st)
}

// Update saves the tracked fields. When recordHistory is true exactly one
// history snapshot is appended; heartbeat-only changes pass false.
func (s *StationStore) Update(ctx context.Context, st *domain.Station, recordHistory bool) error {
	row, err := toRow(st)
	if err != nil {
		return err
	}

	query := `
		UPDATE stations SET
			access_code = :access_code,
			access_days_time = :access_days_time,
			access_detail_code = :access_detail_code,
			cards_accepted = :cards_accepted,
			date_last_confirmed = :date_last_confirmed,
			expected_date = :expected_date,
			fuel_type_code = :fuel_type_code,
			groups_with_access_code = :groups_with_access_code,
			maximum_vehicle_class = :maximum_vehicle_class,
			open_date = :open_date,
			owner_type_code = :owner_type_code,
			restricted_access = :restricted_access,
			status_code = :status_code,
			facility_type = :facility_type,
			station_name = :station_name,
			station_phone = :station_phone,
			updated_at = :updated_at,
			geocode_status = :geocode_status,
			latitude = :latitude,
			longitude = :longitude,
			city = :city,
			country = :country,
			intersection_directions = :intersection_directions,
			plus4 = :plus4,
			state = :state,
			street_address = :street_address,
			zip = :zip,
			ev_connector_types = :ev_connector_types,
			ev_dc_fast_num = :ev_dc_fast_num,
			ev_level1_evse_num = :ev_level1_evse_num,
			ev_level2_evse_num = :ev_level2_evse_num,
			ev_network = :ev_network,
			ev_network_web = :ev_network_web,
			ev_other_evse = :ev_other_evse,
			ev_pricing = :ev_pricing,
			ev_renewable_source = :ev_renewable_source,
			ev_workplace_charging = :ev_workplace_charging,
			ev_network_ids = :ev_network_ids,
			nps_unit_name = :nps_unit_name,
			point = ` + pointExpr + `
		WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, executor(ctx, s.db), query, row); err != nil {
		return fmt.Errorf("update station: %w", err)
	}
	if recordHistory {
		return s.appendHistory(ctx, st)
	}
	return nil
}

func (s *StationStore) appendHistory(ctx context.Context, st *domain.Station) error {
	snapshot, err := json.Marshal(st.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = executor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO station_history (station_id, snapshot) VALUES ($1, $2)`,
		st.ID, snapshot,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the most recent snapshots, newest first.
func (s *StationStore) History(ctx context.Context, stationID int64, limit int) ([]domain.HistoryEntry, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx, `
		SELECT snapshot, recorded_at
		FROM station_history
		WHERE station_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2`,
		stationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var raw []byte
		var entry domain.HistoryEntry
		if err := rows.Scan(&raw, &entry.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SlugExists reports whether a beacon name is already taken.
func (s *StationStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &exists,
		`SELECT EXISTS (SELECT 1 FROM stations WHERE beacon_name = $1)`, slug)
	return exists, err
}

// SetLinkedTo points a duplicate station at its canonical record. Linking
// is structural bookkeeping and never touches history.
func (s *StationStore) SetLinkedTo(ctx context.Context, stationID, linkedTo int64) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`UPDATE stations SET linked_to = $2 WHERE id = $1`, stationID, linkedTo)
	return err
}

// AllNetworks counts canonical stations per network.
func (s *StationStore) AllNetworks(ctx context.Context) ([]domain.NetworkCount, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx, `
		SELECT COALESCE(ev_network, 'None') AS network, COUNT(*) AS count
		FROM stations
		WHERE linked_to IS NULL
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.NetworkCount
	for rows.Next() {
		var nc domain.NetworkCount
		if err := rows.Scan(&nc.Network, &nc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, nc)
	}
	return counts, rows.Err()
}
