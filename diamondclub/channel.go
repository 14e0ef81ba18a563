package diamondclub

import (
	"encoding/json"
	"net/url"
)

// Channel is one entry of the channel guide.
type Channel struct {
	ID          int
	Number      int
	Title       string
	ImageURL    *url.URL // nil when the channel has no artwork
	Description string
	CurrentGame string
}

// TwentyFourSeven is the always-on channel listed before the live channels.
var TwentyFourSeven = Channel{ID: 0, Number: 0, Title: "24/7"}

// Equal reports whether both describe the same stream.
func (c Channel) Equal(other Channel) bool {
	return c.ID == other.ID
}

type channelRecord struct {
	StreamID    *int   `json:"streamid"`
	Channel     *int   `json:"channel"`
	Alias       string `json:"friendlyalias"`
	Name        string `json:"channelname"`
	ImageHD     string `json:"imageassethd"`
	ImageSD     string `json:"imageasset"`
	Description string `json:"twitch_yt_description"`
	CurrentGame string `json:"twitch_currentgame"`
}

// toChannel reports false for records without stream id or channel number.
func (r channelRecord) toChannel() (Channel, bool) {
	if r.StreamID == nil || r.Channel == nil {
		return Channel{}, false
	}

	c := Channel{
		ID:          *r.StreamID,
		Number:      *r.Channel,
		Title:       firstNonEmpty(r.Alias, r.Name, "[unnamed]"),
		Description: r.Description,
		CurrentGame: r.CurrentGame,
	}

	if image := firstNonEmpty(r.ImageHD, r.ImageSD); image != "" {
		if u, err := url.Parse(image); err == nil {
			c.ImageURL = u
		}
	}

	return c, true
}

// decodeChannels decodes a JSON array of channel records, skipping malformed ones.
func decodeChannels(data json.RawMessage) ([]Channel, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	channels := make([]Channel, 0, len(raw))
	skipped := 0

	for _, item := range raw {
		var record channelRecord
		if err := json.Unmarshal(item, &record); err != nil {
			skipped++
			continue
		}

		c, ok := record.toChannel()
		if !ok {
			skipped++
			continue
		}

		channels = append(channels, c)
	}

	return channels, skipped, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
