package seed

import (
	"fmt"

	"peloton/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInGroup is a permanent system riding group.
type BuiltInGroup struct {
	Name        string
	Description string
	Type        models.GroupType
	City        string
	Lat         float64
	Lng         float64
}

// BuiltInGroupList defines the permanent system groups every install gets.
var BuiltInGroupList = []BuiltInGroup{
	{Name: "The Paceline", Description: "General cycling talk for everyone.", Type: models.GroupTypeGeneral},
	{Name: "Gravel Grinders", Description: "Unpaved roads, bikepacking and adventure routes.", Type: models.GroupTypeGeneral},
	{Name: "Commuter Corner", Description: "Daily riding, city setups and wet-weather wisdom.", Type: models.GroupTypeGeneral},
	{Name: "The Wrench", Description: "Maintenance, repairs and component deep-dives.", Type: models.GroupTypeGeneral},
	{Name: "Race Radio", Description: "Pro racing chatter, from spring classics to grand tours.", Type: models.GroupTypeGeneral},
	{Name: "Trailheads", Description: "Mountain biking lines, trail conditions and bike parks.", Type: models.GroupTypeGeneral},
	{Name: "Portland Riders", Description: "Group rides and routes around Portland.", Type: models.GroupTypeLocation, City: "Portland", Lat: 45.5152, Lng: -122.6784},
	{Name: "Amsterdam Fietsers", Description: "Riding in and around Amsterdam.", Type: models.GroupTypeLocation, City: "Amsterdam", Lat: 52.3676, Lng: 4.9041},
	{Name: "Girona Peloton", Description: "Training roads of Girona and the Empordà.", Type: models.GroupTypeLocation, City: "Girona", Lat: 41.9794, Lng: 2.8214},
	{Name: "Boulder Climbers", Description: "Front Range climbs and altitude training.", Type: models.GroupTypeLocation, City: "Boulder", Lat: 40.015, Lng: -105.2705},
}

// BuiltInGroups seeds the permanent system groups. Safe to run repeatedly;
// existing groups are updated in place by name.
func BuiltInGroups(db *gorm.DB) error {
	for _, item := range BuiltInGroupList {
		group := models.Group{
			Name:        item.Name,
			Description: item.Description,
			Type:        item.Type,
			City:        item.City,
		}
		if item.Type == models.GroupTypeLocation {
			lat, lng := item.Lat, item.Lng
			group.Lat = &lat
			group.Lng = &lng
		}

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "type", "city", "updated_at"}),
		}).Create(&group).Error; err != nil {
			return fmt.Errorf("seed built-in group %s: %w", item.Name, err)
		}
	}

	return nil
}
