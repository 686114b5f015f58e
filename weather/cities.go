package weather

import "strings"

// City is a supported lookup location.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Cities lists the supported Philippine cities.
var Cities = []City{
	{"Manila", 14.5995, 120.9842},
	{"Cebu", 10.3157, 123.8854},
	{"Davao", 7.1907, 125.4553},
	{"Quezon City", 14.6760, 121.0437},
	{"Caloocan", 14.6507, 120.9668},
	{"Zamboanga", 6.9214, 122.0790},
	{"Antipolo", 14.5833, 121.1833},
	{"Pasig", 14.5764, 121.0851},
	{"Taguig", 14.5176, 121.0509},
	{"Valenzuela", 14.7000, 120.9833},
	{"Makati", 14.5547, 121.0244},
	{"Parañaque", 14.4793, 121.0198},
	{"Las Piñas", 14.4378, 120.9947},
	{"Muntinlupa", 14.3832, 121.0409},
	{"Baguio", 16.4023, 120.5960},
	{"Iloilo", 10.7202, 122.5621},
	{"Bacolod", 10.6767, 122.9500},
	{"Cagayan de Oro", 8.4542, 124.6319},
	{"General Santos", 6.1164, 125.1716},
	{"Butuan", 8.9470, 125.5361},
}

// FindCity matches a city name case-insensitively.
func FindCity(name string) (City, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Cities {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return City{}, false
}
