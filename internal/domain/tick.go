package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sentinel values used when an instrument is mapped but has never ticked.
const (
	NoData      = "--"
	NoTimestamp = "N/A"
)

// Tick source tags carried in the "v" field.
const (
	SourceFeed = "feed"
	SourceSelf = "self"
)

// Tick is one rate update for a single instrument symbol. All rate fields
// are string-typed on the wire and may carry the "--" sentinel.
type Tick struct {
	Identifier  string `json:"i"`
	DisplayName string `json:"n,omitempty"`
	Bid         string `json:"b"`
	Ask         string `json:"a"`
	LTP         string `json:"ltp"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Open        string `json:"o"`
	Close       string `json:"c"`
	Change      string `json:"d,omitempty"`
	Timestamp   string `json:"t"`
	Source      string `json:"v,omitempty"`
}

// ParseTick decodes a raw feed message. Only the identifier field is
// required; everything else is pass-through payload.
func ParseTick(raw []byte) (Tick, error) {
	var t Tick
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tick{}, fmt.Errorf("malformed tick payload: %w", err)
	}
	t.Identifier = strings.TrimSpace(t.Identifier)
	if t.Identifier == "" {
		return Tick{}, ErrMissingIdentifier
	}
	return t, nil
}

// PlaceholderTick returns the snapshot record for a mapped instrument
// that has no cached value yet.
func PlaceholderTick(identifier, displayName string) Tick {
	return Tick{
		Identifier:  identifier,
		DisplayName: displayName,
		Bid:         NoData,
		Ask:         NoData,
		LTP:         NoData,
		High:        NoData,
		Low:         NoData,
		Open:        NoData,
		Close:       NoData,
		Change:      NoData,
		Timestamp:   NoTimestamp,
		Source:      NoData,
	}
}

// Marshal serializes the tick back to its wire form.
func (t Tick) Marshal() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal tick %q: %w", t.Identifier, err)
	}
	return data, nil
}

// Symbol returns the canonical (upper-cased) symbol key. Identifiers are
// case-insensitive everywhere they are compared or used as cache keys.
func (t Tick) Symbol() string {
	return CanonicalSymbol(t.Identifier)
}

// CanonicalSymbol normalizes a symbol identifier for map and cache keys.
func CanonicalSymbol(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}
