package types

// ProfileInfo contains user profile metadata (kind 0)
type ProfileInfo struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	About       string `json:"about,omitempty"`
	Lud16       string `json:"lud16,omitempty"`
	Lud06       string `json:"lud06,omitempty"`
	Website     string `json:"website,omitempty"`
}

// BestName returns the most specific display name the profile carries.
func (p *ProfileInfo) BestName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// CanReceiveZaps reports whether the profile has a Lightning address
// (lud16 or lud06) that zap payments can be routed to.
func (p *ProfileInfo) CanReceiveZaps() bool {
	return p != nil && (p.Lud16 != "" || p.Lud06 != "")
}
