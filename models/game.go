// models/game.go
package models

const (
	GameStatusWaiting  = "waiting"
	GameStatusActive   = "active"
	GameStatusFinished = "finished"
)

// Game is one two-player naval match. Status only ever moves forward
// (waiting → active → finished); a waiting game can instead be deleted by its
// creator. WinnerID is set exactly when the game finishes.
type Game struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"not null"`
	Slug      string `json:"slug" gorm:"index"`
	Status    string `json:"status" gorm:"default:'waiting';check:status IN ('waiting','active','finished')"`
	CreatorID uint   `json:"creator_id" gorm:"index;not null"`
	WinnerID  *uint  `json:"winner_id"`

	Timestamps

	Creator *User        `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Winner  *User        `json:"winner,omitempty" gorm:"foreignKey:WinnerID"`
	Players []GamePlayer `json:"players,omitempty" gorm:"foreignKey:GameID"`
	Moves   []GameMove   `json:"moves,omitempty" gorm:"foreignKey:GameID"`
}
