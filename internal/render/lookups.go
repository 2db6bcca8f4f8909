package render

// Lookups translate upstream codes into display labels, keyed by field
// name. Unknown codes pass through as their raw string.
var Lookups = map[string]map[string]string{
	"status_code": {
		"E": "Available",
		"P": "Planned",
		"T": "Temporarily Unavailable",
	},
	"cards_accepted": {
		"A":               "American Express",
		"Credit":          "Credit",
		"Debit":           "Debit",
		"D":               "Discover",
		"M":               "MasterCard",
		"V":               "Visa",
		"Cash":            "Cash",
		"Checks":          "Check",
		"ACCOUNT_BALANCE": "Account Balance",
		"ANDROID_PAY":     "Android Pay",
		"APPLE_PAY":       "Apple Pay",
		"ARI":             "ARI",
		"CleanEnergy":     "Clean Energy",
		"CFN":             "CFN",
		"COMDATA":         "Comdata",
		"EFS":             "EFS",
		"FleetOne":        "Fleet One",
		"FUELMAN":         "Fuelman",
		"GasCard":         "GASCARD",
		"PacificPride":    "Pacific Pride",
		"PHH":             "PHH",
		"Proprietor":      "Proprietor Fleet Card",
		"Speedway":        "Speedway",
		"SuperPass":       "SuperPass",
		"TCH":             "TCH",
		"Tchek":           "T-Chek T-Card",
		"Trillium":        "Trillium",
		"Voyager":         "Voyager",
		"Wright_Exp":      "WEX",
	},
	"ev_network": {
		"ChargePoint Network":  "ChargePoint",
		"eVgo Network":         "EVgo",
		"Tesla":                "Tesla Supercharger",
		"Tesla Destination":    "Tesla Destination",
		"Electrify America":    "Electrify America",
		"Blink Network":        "Blink",
		"EV Connect":           "EV Connect",
		"FLO":                  "FLO",
		"FCN":                  "Francis Energy",
		"Non-Networked":        "Non-Networked",
		"OpConnect":            "OpConnect",
		"SemaCharge Network":   "SemaConnect",
		"SHELL_RECHARGE":       "Shell Recharge",
		"Volta":                "Volta",
		"WAVE":                 "WAVE",
		"RIVIAN_ADVENTURE":     "Rivian Adventure Network",
		"RED_E":                "Red E Charging",
		"CIRCLE_K":             "Circle K Charge",
		"eCharge Network":      "eCharge Network",
		"Sun Country Highway":  "Sun Country Highway",
		"UNIVERSAL":            "Universal EV Chargers",
		"ZEFNET":               "ZEF Energy",
	},
	"owner_type_code": {
		"FG": "Federal Government Owned",
		"J":  "Jointly Owned",
		"LG": "Local/Municipal Government Owned",
		"P":  "Privately Owned",
		"SG": "State/Provincial Government Owned",
		"T":  "Utility Owned",
	},
	"access_detail_code": {
		"CALL":                    "Call ahead",
		"KEY_AFTER_HOURS":         "Card key after hours",
		"KEY_ALWAYS":              "Card key at all times",
		"CREDIT_CARD_AFTER_HOURS": "Credit card after hours",
		"CREDIT_CARD_ALWAYS":      "Credit card at all times",
		"FLEET":                   "Fleet customers only",
		"GOVERNMENT":              "Government only",
		"LIMITED_HOURS":           "Limited hours",
		"RESIDENTIAL":             "Residential",
	},
	"fuel_type_code": {
		"ELEC": "Electric",
	},
	"maximum_vehicle_class": {
		"LD": "Passenger vehicles (class 1-2)",
		"MD": "Medium-duty (class 3-5)",
		"HD": "Heavy-duty (class 6-8)",
	},
	"facility_type": {
		"AIRPORT":            "Airport",
		"CAR_DEALER":         "Car Dealer",
		"CONVENIENCE_STORE":  "Convenience Store",
		"FUEL_RESELLER":      "Fuel Reseller",
		"GROCERY":            "Grocery Store",
		"HOTEL":              "Hotel",
		"MUNI_GOV":           "Municipal Government",
		"OFFICE_BLDG":        "Office Building",
		"PARKING_GARAGE":     "Parking Garage",
		"PARKING_LOT":        "Parking Lot",
		"PAY_GARAGE":         "Pay-Parking Garage",
		"PAY_LOT":            "Pay-Parking Lot",
		"REC_SPORTS_FACILITY": "Recreational Sports Facility",
		"RESTAURANT":         "Restaurant",
		"REST_STOP":          "Rest Stop",
		"RETAIL":             "Retail",
		"SHOPPING_CENTER":    "Shopping Center",
		"SHOPPING_MALL":      "Shopping Mall",
		"STANDALONE_STATION": "Standalone Station",
		"TRAVEL_CENTER":      "Travel Center",
		"UTILITY":            "Utility",
		"WORKPLACE":          "Workplace",
	},
}

// NetworkLabel translates an upstream network id to its display name.
func NetworkLabel(network string) string {
	if label, ok := Lookups["ev_network"][network]; ok {
		return label
	}
	return network
}
