package ws

import "encoding/json"

// Envelope is the wire frame for both directions: a named event with a
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	eventSetUser    = "set_user"
	eventCreateRoom = "create_room"
	eventRemoveRoom = "remove_room"
	eventJoinRoom   = "join_room"
	eventLeaveRoom  = "leave_room"
	eventReady      = "ready"
	eventColor      = "color"
	eventGuess      = "guess"
	eventMouseMove  = "mousemove"
)

type setUserPayload struct {
	UserID   string `json:"userid"`
	Username string `json:"username"`
}

type createRoomPayload struct {
	RoomID   string `json:"roomid"`
	Name     string `json:"name"`
	Settings struct {
		Rounds      int `json:"rounds"`
		TurnSeconds int `json:"turnSeconds"`
	} `json:"settings"`
}

type guessPayload struct {
	RoomID string `json:"roomid"`
	Guess  string `json:"guess"`
}

// roomRefPayload covers events whose payload is just a room id, sent either
// as a bare string or as an object.
func roomRef(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		RoomID string `json:"roomid"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.RoomID
	}
	return ""
}

func encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}
