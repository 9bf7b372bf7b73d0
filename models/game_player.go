package models

// GamePlayer joins a user into a game: their hidden board, how many ship
// cells they still have afloat, and whether it is their turn. The unique
// index on (game_id, user_id) keeps a user from joining the same game twice;
// the two-player cap is enforced in the service under a row lock.
type GamePlayer struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	GameID         uint   `json:"game_id" gorm:"uniqueIndex:idx_game_user;not null"`
	UserID         uint   `json:"user_id" gorm:"uniqueIndex:idx_game_user;not null"`
	Board          string `json:"-" gorm:"type:text;not null"` // serialized 8x8 grid, redacted at read time
	ShipsRemaining int    `json:"ships_remaining" gorm:"default:15"`
	IsCurrentTurn  bool   `json:"is_current_turn" gorm:"default:false"`

	Timestamps

	Game *Game `json:"-" gorm:"foreignKey:GameID"`
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
