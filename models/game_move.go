package models

// GameMove is an append-only log entry for one shot. FinalBoardState is the
// defender's board right after the shot landed, kept for audit and for the
// post-game detail view. Creation order is the canonical move sequence.
type GameMove struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	GameID         uint   `json:"game_id" gorm:"index;not null"`
	PlayerID       uint   `json:"player_id" gorm:"not null"`
	TargetPlayerID uint   `json:"target_player_id" gorm:"not null"`
	Position       string `json:"position" gorm:"type:varchar(3);not null"` // e.g. "A3"
	Hit            bool   `json:"hit" gorm:"not null"`
	ShipDestroyed  bool   `json:"ship_destroyed" gorm:"default:false"`
	FinalBoardState string `json:"-" gorm:"type:text;not null"`

	Timestamps

	Game         *Game `json:"-" gorm:"foreignKey:GameID"`
	Player       *User `json:"player,omitempty" gorm:"foreignKey:PlayerID"`
	TargetPlayer *User `json:"target_player,omitempty" gorm:"foreignKey:TargetPlayerID"`
}
