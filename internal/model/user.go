package model

type User struct {
	Record
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	EmailVisibility bool     `json:"emailVisibility"`
	Verified        bool     `json:"verified"`
	Name            string   `json:"name"`
	Avatar          string   `json:"avatar,omitempty"`
	JoinedGroups    []string `json:"joinedGroups"`
}

type Group struct {
	Record
	Name           string   `json:"name"`
	JoinCode       string   `json:"joinCode"`
	Owner          string   `json:"owner"`
	AllowedPosters []string `json:"allowedPosters"`
	Icon           string   `json:"icon,omitempty"`
}
