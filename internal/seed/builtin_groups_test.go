package seed

import (
	"testing"

	"peloton/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupImage{},
		&models.FriendRequest{},
		&models.Friendship{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestBuiltInGroups_Idempotent(t *testing.T) {
	t.Parallel()
	db := openSeedTestDB(t)

	if err := BuiltInGroups(db); err != nil {
		t.Fatalf("seed built-in groups: %v", err)
	}
	if err := BuiltInGroups(db); err != nil {
		t.Fatalf("re-seed built-in groups: %v", err)
	}

	var count int64
	if err := db.Model(&models.Group{}).Count(&count).Error; err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if count != int64(len(BuiltInGroupList)) {
		t.Fatalf("expected %d groups, got %d", len(BuiltInGroupList), count)
	}
}

func TestBuiltInGroups_LocationGroupsHaveCoordinates(t *testing.T) {
	t.Parallel()
	db := openSeedTestDB(t)

	if err := BuiltInGroups(db); err != nil {
		t.Fatalf("seed built-in groups: %v", err)
	}

	var locationGroups []models.Group
	if err := db.Where("type = ?", models.GroupTypeLocation).Find(&locationGroups).Error; err != nil {
		t.Fatalf("query location groups: %v", err)
	}
	if len(locationGroups) == 0 {
		t.Fatal("expected location groups")
	}
	for _, g := range locationGroups {
		if g.City == "" || g.Lat == nil || g.Lng == nil {
			t.Fatalf("location group %q missing city or coordinates", g.Name)
		}
	}
}

func TestSeedFriendshipMesh_CreatesBothDirections(t *testing.T) {
	t.Parallel()
	db := openSeedTestDB(t)

	seeder := NewSeeder(db, Options{SkipBcrypt: true, FriendsPerRider: 2})
	riders, err := seeder.SeedRiders(6)
	if err != nil {
		t.Fatalf("seed riders: %v", err)
	}
	if len(riders) != 6 {
		t.Fatalf("expected 6 riders, got %d", len(riders))
	}

	if err := seeder.SeedFriendshipMesh(riders); err != nil {
		t.Fatalf("seed friendship mesh: %v", err)
	}

	var edgeCount int64
	if err := db.Model(&models.Friendship{}).Count(&edgeCount).Error; err != nil {
		t.Fatalf("count friendships: %v", err)
	}
	if edgeCount == 0 {
		t.Fatal("expected at least one friendship")
	}
	// Accepted requests always create both directed edges.
	if edgeCount%2 != 0 {
		t.Fatalf("expected an even number of directed edges, got %d", edgeCount)
	}

	var requestCount int64
	if err := db.Model(&models.FriendRequest{}).
		Where("status = ?", models.FriendRequestStatusAccepted).
		Count(&requestCount).Error; err != nil {
		t.Fatalf("count requests: %v", err)
	}
	if requestCount*2 != edgeCount {
		t.Fatalf("expected %d edges for %d accepted requests, got %d", requestCount*2, requestCount, edgeCount)
	}
}
