package domain

// AreaType classifies a geographic area.
type AreaType string

const (
	AreaCity    AreaType = "c"
	AreaState   AreaType = "s"
	AreaZip     AreaType = "z"
	AreaCountry AreaType = "y"
)

// Area is a geographic region searches can filter by. Its geometry stays
// in the database; the pipeline only ever asks for containment.
type Area struct {
	ID       int64    `db:"id"`
	Name     string   `db:"name"`
	PlaceID  string   `db:"place_id"`
	AreaType AreaType `db:"area_type"`
}
