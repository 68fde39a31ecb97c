package domain

import "time"

// DeviceAccess describes one registered device of a client.
type DeviceAccess struct {
	DeviceID      string `json:"deviceId"`
	DeviceToken   string `json:"deviceToken"`
	DeviceType    string `json:"deviceType"`
	IsDND         bool   `json:"isDND"`
	HasNewsAccess bool   `json:"hasNewsAccess"`
	HasRateAccess bool   `json:"hasRateAccess"`
}

// ClientAccess is the entitlement snapshot for one client, refreshed into
// the shared cache by the admin system whenever a client or device record
// changes. The fan-out core only reads it.
type ClientAccess struct {
	ID             int            `json:"id"`
	Username       string         `json:"username"`
	IsActive       bool           `json:"isActive"`
	RateExpireDate time.Time      `json:"rateExpireDate"`
	NewsExpireDate time.Time      `json:"newsExpireDate"`
	Keywords       string         `json:"keywords,omitempty"`
	Topics         string         `json:"topics,omitempty"`
	DeviceAccess   []DeviceAccess `json:"deviceAccess,omitempty"`
}

// ForDevice returns a copy of the snapshot narrowed to a single device.
func (c ClientAccess) ForDevice(deviceID string) ClientAccess {
	narrowed := c
	narrowed.DeviceAccess = nil
	for _, d := range c.DeviceAccess {
		if d.DeviceID == deviceID {
			narrowed.DeviceAccess = append(narrowed.DeviceAccess, d)
		}
	}
	return narrowed
}

// Instrument is the symbol-to-contract mapping owned by the admin system.
// The core uses it for display-name resolution and for the per-client
// symbol list pushed on room join.
type Instrument struct {
	Identifier string
	Contract   string
}

// SymbolEntry is one element of the symbol-list push: the identifier plus
// its display contract name, in the original wire shape.
type SymbolEntry struct {
	Identifier string `json:"i"`
	Contract   string `json:"n"`
}
