package domain

// Outbound event names pushed to clients. These match the wire protocol
// spoken by the existing terminals, so they are part of the public
// contract and must not be renamed.
const (
	EventUserConnected    = "UserConnected"
	EventUserDisconnected = "UserDisconnected"
	EventReceiveMessage   = "ReceiveMessage"
	EventUserListOfSymbol = "UserListOfSymbol"
	EventExcelRate        = "excelRate"
	EventReceiveAllClient = "ReceiveAllClient"
	EventReceiveNews      = "ReceiveNewsNotification"
	EventError            = "error"
)

// Envelope is the outbound message frame. Tick pushes (EventExcelRate)
// carry gzip-compressed JSON in Data as a base64 string; everything else
// is plain JSON.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// AccessSnapshot is the ReceiveMessage payload delivered on room join:
// whether the identity is known plus its entitlement rows.
type AccessSnapshot struct {
	Status bool           `json:"status"`
	Data   []ClientAccess `json:"data"`
}

// ClientListEntry is one row of the ReceiveAllClient payload.
type ClientListEntry struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// ClientList is the ReceiveAllClient payload.
type ClientList struct {
	Status bool              `json:"status"`
	Data   []ClientListEntry `json:"data"`
}
