package config

import (
	"time"

	"github.com/verte-zerg/countline/internal/model"
)

// DefaultMetadataURL is the CKAN package listing the Mill Road trial sensors.
const DefaultMetadataURL = "https://data.cambridgeshireinsight.org.uk/api/3/action/package_show?id=52aaa64f-0f3d-4130-86cd-f24290378d33"

// DefaultArea names the place in chart titles.
const DefaultArea = "Cambridge"

// DefaultSensors are plotted when no sensor is named.
var DefaultSensors = []string{
	"Sensor 1: Mill Road",
	"Sensor 2: Mill Road",
	"Sensor 7: Coldhams Lane",
}

// DefaultLocations maps sensor names to street locations published with
// the Mill Road trial.
func DefaultLocations() map[string]string {
	return map[string]string{
		"Sensor 1: Mill Road":                   "362 Mill Rd",
		"Sensor 2: Mill Road":                   "Mill Rd (SO 1 Mortimer Rd)",
		"Sensor 3: Coleridge Road":              "108 Coleridge Rd",
		"Sensor 4: Vinery Road":                 "114 Vinery Rd",
		"Sensor 41: Tenison Road":               "2 Tenison Rd",
		"Sensor 6: Station Road":                "OP 6 Station Rd",
		"Sensor 7: Coldhams Lane":               "151/153 Coldhams Ln",
		"Sensor 40: Cherry Hinton Road":         "117 Cherry Hinton Rd",
		"Sensor 16: Perne Road":                 "142 Perne Road",
		"Sensor 10: East Road":                  "O/S ARU East Road",
		"Sensor 12: Devonshire Road Cycle Path": "55 Devonshire Rd",
		"Sensor 13: Milton Road":                "214 Milton Rd",
		"Sensor 14: Hills Road":                 "140 Hills Rd",
		"Sensor 15: Newmarket Road":             "560 Newmarket Road",
	}
}

// DefaultAnnotations returns the bridge closures and lockdown dates.
func DefaultAnnotations() model.Annotations {
	return model.Annotations{
		Bands: []model.Band{
			{Start: date(2019, time.July, 1), End: date(2019, time.September, 1), Label: "Bridge Closed '19"},
			{Start: date(2020, time.June, 23), Label: "Bridge Closed '20"},
		},
		Events: []model.Event{
			{Date: date(2020, time.March, 23), Label: "1st Lockdown"},
			{Date: date(2020, time.October, 13), Label: "2nd Lockdown"},
			{Date: date(2021, time.January, 6), Label: "3rd Lockdown"},
			{Date: date(2021, time.April, 12), Label: "S2 Easing"},
		},
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
