package models

import (
	"time"
)

// User is an account row. Passwords are bcrypt hashes and never leave the
// server (json:"-").
type User struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Username  string `json:"username" gorm:"uniqueIndex;not null"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Password  string `json:"-" gorm:"not null"`
	GamesWon  int    `json:"games_won" gorm:"default:0"`
	GamesLost int    `json:"games_lost" gorm:"default:0"`

	Timestamps
}

type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
