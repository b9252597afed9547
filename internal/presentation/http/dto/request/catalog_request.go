package request

// ProductFilterRequest represents cached product filter parameters
type ProductFilterRequest struct {
	Search     string `form:"search"`
	CategoryID string `form:"category_id"`
	Active     *bool  `form:"active"`
	Favorite   *bool  `form:"favorite"`
}
