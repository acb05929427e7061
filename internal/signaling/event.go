package signaling

import "encoding/json"

// Client-to-server events.
const (
	EventJoinRoom  = "join_room"
	EventLeaveRoom = "leave_room"
	EventOffer     = "webrtc_offer"
	EventAnswer    = "webrtc_answer"
	EventICE       = "ice_candidate"
	EventChat      = "chat_message"
	EventStartCall = "start_call"
	EventEndCall   = "end_call"
)

// Server-to-client events.
const (
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventCallStarted      = "call_started"
	EventCallEnded        = "call_ended"
	EventWaitingForDoctor = "waiting_for_doctor"
	EventWaitingForOTP    = "waiting_for_otp"
	EventError            = "error"
)

// Envelope is the wire frame for every signaling message. Data carries the
// event payload opaquely; the relay never inspects SDP or ICE contents.
//
// Conn identifies the sending connection (participants may hold more than one
// during a reconnect). To addresses an offer/answer/ICE frame to a single
// connection id, or to every connection of an actor id; when empty the frame
// fans out to the whole room.
type Envelope struct {
	Event     string          `json:"event"`
	Room      string          `json:"room,omitempty"`
	From      string          `json:"from,omitempty"`
	Role      string          `json:"role,omitempty"`
	Conn      string          `json:"conn,omitempty"`
	To        string          `json:"to,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func errorEnvelope(msg string) Envelope {
	data, _ := json.Marshal(map[string]string{"message": msg})
	return Envelope{Event: EventError, Data: data}
}
