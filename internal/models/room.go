package models

const (
	RoomAvailable   = "available"
	RoomUnavailable = "unavailable"
)

// Room is a bookable accommodation type with a finite remaining count.
type Room struct {
	BaseModel
	RoomID    string  `gorm:"uniqueIndex;not null" json:"roomId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Guests    int     `json:"guests"`
	Count     int     `gorm:"column:remaining_count;not null;default:0" json:"count"`
	Available string  `json:"available"`
}
