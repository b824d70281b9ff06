package game

// Outbound event names. Payload shapes live in snapshot.go.
const (
	EventUpdateRoom      = "update_room"
	EventUpdateGameTimer = "update_game_timer"
	EventUpdateRooms     = "update_rooms"
	EventUpdateUsers     = "update_users"
	EventJoinRoom        = "join_room"
	EventJoinRoomError   = "join_room_error"
	EventGameStart       = "game_start"
	EventGameOver        = "game_over"
	EventCountdown       = "countdown"
	EventCountdownCancel = "countdown_cancel"
	EventMoving          = "moving"
)

// Broadcaster delivers events to connected clients. Delivery is best-effort:
// a failed send to one member must never abort the fan-out to the rest.
type Broadcaster interface {
	ToRoom(roomID, event string, payload any)
	ToUser(userID, event string, payload any)
	ToAll(event string, payload any)
}
