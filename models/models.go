package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&DocumentCategory{},
		&Document{},
		&ForumCategory{},
		&ForumPost{},
		&ForumReply{},
		&ChatMessage{},
		&Announcement{},
		&WeatherCache{},
		&AuditLog{},
		&PageView{},
	}
}
