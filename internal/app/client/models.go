package client

// HealthInfo ответ GET /health сервера или соседнего устройства
type HealthInfo struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type resolveProductRequest struct {
	Nombre string `json:"nombre"`
	SKU    string `json:"sku,omitempty"`
}

type resolveProductResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type registerRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name,omitempty"`
	Secret   string `json:"secret,omitempty"`
}

type registerResponse struct {
	Token  string `json:"token"`
	Status string `json:"status"`
}

// errorBody покрывает ответы huma (title/detail) и мидлвари авторизации (error)
type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (b errorBody) message() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case b.Error != "":
		return b.Error
	default:
		return b.Title
	}
}
