package models

// PeerNode represents the paired counterpart device.
type PeerNode struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Address     string `json:"address"`
}
