package model

// Record carries the base fields every data-store record exposes.
type Record struct {
	ID             string `json:"id"`
	CollectionID   string `json:"collectionId"`
	CollectionName string `json:"collectionName"`
	Created        string `json:"created"`
	Updated        string `json:"updated"`
}

// Collection names as the data store knows them.
const (
	CollectionUsers      = "users"
	CollectionGroups     = "groups"
	CollectionMessages   = "messages"
	CollectionPushTokens = "pushTokens"
)
