package actors

// KindCharacter is the actor kind for player characters. Every other kind is
// treated as an NPC when picking default frames.
const KindCharacter = "character"

type Token struct {
	ImageURL   string `json:"image_url"`
	IsWildcard bool   `json:"is_wildcard"`
}

type Actor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	PortraitURL string `json:"portrait_url"`
	Token       Token  `json:"token"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	PortraitURL   *string `json:"portrait_url,omitempty"`
	TokenImageURL *string `json:"token_image_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.PortraitURL == nil && p.TokenImageURL == nil
}

// Apply returns a copy of a with p applied.
func (p Patch) Apply(a Actor) Actor {
	if p.PortraitURL != nil {
		a.PortraitURL = *p.PortraitURL
	}
	if p.TokenImageURL != nil {
		a.Token.ImageURL = *p.TokenImageURL
	}
	return a
}
