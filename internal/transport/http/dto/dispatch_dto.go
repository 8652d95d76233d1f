package dto

type DispatchRequest struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

type DispatchResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// DispatchError matches the dispatch endpoint's single-field error contract.
type DispatchError struct {
	Error string `json:"error"`
}
