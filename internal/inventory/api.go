package inventory

import "foyer-backend/internal/store"

// registryResponse models one page of the housing registry feed.
type registryResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int                   `json:"page"`
		PageSize int                   `json:"pageSize"`
		Total    int                   `json:"total"`
		Items    []store.InventoryItem `json:"items"`
	} `json:"data"`
}
