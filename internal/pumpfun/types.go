package pumpfun

// Coin is one entry of the currently-live listing.
type Coin struct {
	Mint     string  `json:"mint"`
	Name     *string `json:"name"`
	ImageURI string  `json:"image_uri"`
}

// Detail is the livestream detail response. Absent fields stay nil.
type Detail struct {
	NumParticipants *int    `json:"numParticipants"`
	IsLive          *bool   `json:"isLive"`
	Title           *string `json:"title"`
}

func (d Detail) Viewers() int {
	if d.NumParticipants == nil || *d.NumParticipants < 0 {
		return 0
	}
	return *d.NumParticipants
}

func (d Detail) Live() bool {
	return d.IsLive != nil && *d.IsLive
}

// TitleOr returns the reported title, or fallback when it is absent or empty.
func (d Detail) TitleOr(fallback string) string {
	if d.Title == nil || *d.Title == "" {
		return fallback
	}
	return *d.Title
}
