package rpcapi

type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type CommitSaleRequest struct {
	CustomerID string     `json:"customer_id"`
	Items      []LineItem `json:"items"`
	// RFC 3339; empty means now.
	RequestedAt string `json:"requested_at,omitempty"`
	Status      string `json:"status,omitempty"`
	RequestKey  string `json:"request_key,omitempty"`
}

type SaleItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
}

type Sale struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Date       string     `json:"date"`
	Items      []SaleItem `json:"items"`
	Total      string     `json:"total"`
	Status     string     `json:"status"`
	RequestKey string     `json:"request_key,omitempty"`
}

type CommitSaleResponse struct {
	Sale *Sale `json:"sale"`
}

type GetSaleRequest struct {
	ID string `json:"id"`
}

type GetSaleResponse struct {
	Sale *Sale `json:"sale"`
}

func (r *CommitSaleRequest) GetCustomerId() string {
	if r == nil {
		return ""
	}
	return r.CustomerID
}

func (r *GetSaleRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.ID
}
