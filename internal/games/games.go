// Package games holds the game records a player's history is made of.
package games

import "strings"

// Player is one side of a game.
type Player struct {
	Name   string `json:"name"`
	ID     string `json:"id,omitempty"`
	Rating int    `json:"rating,omitempty"`
}

// Players names both sides.
type Players struct {
	White Player `json:"white"`
	Black Player `json:"black"`
}

// GameRecord is an immutable game as supplied by the game-history source.
type GameRecord struct {
	ID        string   `json:"id"`
	Variant   string   `json:"variant"`
	Speed     string   `json:"speed"`
	Rated     bool     `json:"rated"`
	CreatedAt int64    `json:"created_at,omitempty"`
	Status    string   `json:"status,omitempty"`
	Players   Players  `json:"players"`
	Moves     []string `json:"moves"`
}

// ColorOf returns "white" or "black" for the named player, or "" if the
// player did not take part. Names compare case-insensitively.
func (g GameRecord) ColorOf(name string) string {
	switch {
	case strings.EqualFold(g.Players.White.Name, name) || strings.EqualFold(g.Players.White.ID, name):
		return "white"
	case strings.EqualFold(g.Players.Black.Name, name) || strings.EqualFold(g.Players.Black.ID, name):
		return "black"
	default:
		return ""
	}
}
