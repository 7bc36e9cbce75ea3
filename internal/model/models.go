package model

// All lists every persisted model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Document{},
		&Chunk{},
		&ChunkAnalysis{},
		&DocumentReport{},
		&Conversation{},
		&Message{},
	}
}
