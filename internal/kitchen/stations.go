package kitchen

import "github.com/ashendes/kitchen-pos/internal/models"

const (
	defaultStation       = models.StationMain
	defaultEstimatedTime = 10
)

var menuStations = map[string]models.Station{
	"MENU-001": models.StationMain,     // pizza
	"MENU-002": models.StationSalad,    // caesar salad
	"MENU-003": models.StationGrill,    // burger
	"MENU-004": models.StationMain,     // pasta
	"MENU-005": models.StationGrill,    // steak
	"MENU-006": models.StationFryer,    // fries
	"MENU-007": models.StationBeverage, // drinks
}

var menuEstimates = map[string]int{
	"MENU-001": 15,
	"MENU-002": 5,
	"MENU-003": 12,
	"MENU-004": 18,
	"MENU-005": 20,
	"MENU-006": 8,
	"MENU-007": 3,
}

// StationFor returns the preparation station of a menu item
func StationFor(menuItemID string) models.Station {
	if s, ok := menuStations[menuItemID]; ok {
		return s
	}
	return defaultStation
}

// EstimatedTimeFor returns the estimated preparation minutes of a menu item
func EstimatedTimeFor(menuItemID string) int {
	if m, ok := menuEstimates[menuItemID]; ok {
		return m
	}
	return defaultEstimatedTime
}

// ValidStation reports whether s is a known station
func ValidStation(s models.Station) bool {
	switch s {
	case models.StationGrill, models.StationFryer, models.StationSalad,
		models.StationDessert, models.StationBeverage, models.StationMain:
		return true
	}
	return false
}
