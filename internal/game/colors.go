package game

import "math/rand"

// palette holds the user colors handed out on room join.
var palette = []string{
	"#e74c3c", // red
	"#3498db", // blue
	"#2ecc71", // green
	"#f1c40f", // yellow
	"#9b59b6", // purple
	"#e67e22", // orange
}

// pickColor returns a random palette color not already taken by a room
// member. Once the palette is exhausted, collisions are allowed.
func pickColor(users map[string]*User) string {
	used := make(map[string]bool, len(users))
	for _, u := range users {
		used[u.Color] = true
	}

	free := make([]string, 0, len(palette))
	for _, c := range palette {
		if !used[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return palette[rand.Intn(len(palette))]
	}
	return free[rand.Intn(len(free))]
}
