package game

// RoomSnapshot is the transport-safe projection of a room that goes out in
// every update_room broadcast. It is built from a fixed field allowlist and
// never carries connection handles or other internal-only state. Current-turn
// guess texts of all members are included (not redacted): they power the
// match display, matching the room protocol clients already speak.
type RoomSnapshot struct {
	RoomID   string         `json:"roomid"`
	Name     string         `json:"name"`
	HostID   string         `json:"hostUserid"`
	Active   bool           `json:"active"`
	Settings Settings       `json:"settings"`
	Users    []UserSnapshot `json:"users"`
	Game     *GameSnapshot  `json:"game,omitempty"`
}

type UserSnapshot struct {
	UserID    string          `json:"userid"`
	Username  string          `json:"username"`
	Connected bool            `json:"connected"`
	Ready     bool            `json:"ready"`
	Match     bool            `json:"match"`
	Score     int             `json:"score"`
	Color     string          `json:"color"`
	Guesses   []GuessSnapshot `json:"guesses"`
}

type GuessSnapshot struct {
	UserID string `json:"userid"`
	Text   string `json:"guess"`
}

type GameSnapshot struct {
	Round          int    `json:"round"`
	RoundEnd       int    `json:"roundEnd"`
	Turn           int    `json:"turn"`
	TurnEnd        int    `json:"turnEnd"`
	Phase          string `json:"phase"`
	Word           string `json:"word"`
	DrawerUserID   string `json:"turnUserid"`
	TimerRemaining int    `json:"timer"`
}

// Snapshot projects a room into its broadcast form. Users appear in join
// order. Caller holds the room's lock.
func Snapshot(r *Room) RoomSnapshot {
	snap := RoomSnapshot{
		RoomID:   r.id,
		Name:     r.name,
		HostID:   r.hostID,
		Active:   r.active,
		Settings: r.settings,
		Users:    make([]UserSnapshot, 0, len(r.users)),
	}

	for _, u := range r.orderedUsers() {
		us := UserSnapshot{
			UserID:    u.ID,
			Username:  u.Username,
			Connected: u.Connected,
			Ready:     u.Ready,
			Match:     u.Match,
			Score:     u.Score,
			Color:     u.Color,
			Guesses:   make([]GuessSnapshot, 0, len(u.Guesses)),
		}
		for _, g := range u.Guesses {
			us.Guesses = append(us.Guesses, GuessSnapshot{UserID: g.UserID, Text: g.Text})
		}
		snap.Users = append(snap.Users, us)
	}

	if s := r.session; s != nil {
		snap.Game = &GameSnapshot{
			Round:          s.Round,
			RoundEnd:       s.RoundEnd,
			Turn:           s.Turn,
			TurnEnd:        s.TurnEnd,
			Phase:          s.Phase.String(),
			Word:           s.Word,
			DrawerUserID:   s.DrawerID,
			TimerRemaining: s.TimerRemaining,
		}
	}

	return snap
}
