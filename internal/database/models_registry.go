package database

import "peloton/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.Message{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupImage{},
		&models.GroupMessage{},
		&models.GroupMessageRead{},
		&models.Post{},
		&models.PostImage{},
		&models.PostReply{},
		&models.PostView{},
		&models.Notification{},
		&models.PushSubscription{},
	}
}
