package catalog

type resolveInput struct {
	Body resolveRequest
}

type resolveRequest struct {
	Nombre string `json:"nombre" maxLength:"255" doc:"Название товара"`
	SKU    string `json:"sku,omitempty" maxLength:"128" doc:"Штрихкод"`
}

type resolveOutput struct {
	Body resolveResponse
}

type resolveResponse struct {
	ID      string `json:"id"`
	Nombre  string `json:"nombre"`
	SKU     string `json:"sku,omitempty"`
	Created bool   `json:"created"`
}
