package request

// EntryFilterRequest represents sync queue listing parameters
type EntryFilterRequest struct {
	Status  string `form:"status"`
	Page    int    `form:"page"`
	PerPage int    `form:"per_page"`
}

// ConnectivityRequest is pushed by a host that owns the network signal
type ConnectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}
