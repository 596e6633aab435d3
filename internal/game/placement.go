// internal/game/placement.go
package game

// Placement is a finished player's position, as recorded by the relay.
type Placement struct {
	Seat int    `json:"seat"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}
