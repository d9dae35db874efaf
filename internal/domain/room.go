package domain

// RoomStatus is the open/closed flag of the room. The zero value is closed.
type RoomStatus bool

const (
	Closed RoomStatus = false
	Open   RoomStatus = true
)

func (s RoomStatus) IsOpen() bool { return bool(s) }

// String returns the word used in confirmation messages.
func (s RoomStatus) String() string {
	if s {
		return "open"
	}
	return "closed"
}

// Presentation is what the status page shows for a given status.
type Presentation struct {
	Open    bool   `json:"open"`
	Title   string `json:"title"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

func (s RoomStatus) Presentation() Presentation {
	if s {
		return Presentation{Open: true, Title: "Status: Open", Color: "green", Message: "OPEN"}
	}
	return Presentation{Open: false, Title: "Status: Closed", Color: "red", Message: "CLOSED"}
}
