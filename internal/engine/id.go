package engine

import "github.com/google/uuid"

// GenerateEngineID generates a new unique engine ID using UUID v4
func GenerateEngineID() string {
	return uuid.New().String()
}
