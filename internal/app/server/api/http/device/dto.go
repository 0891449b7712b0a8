package device

type registerInput struct {
	Body registerRequest
}

type registerRequest struct {
	DeviceID string `json:"deviceId" minLength:"1" maxLength:"64" doc:"Уникальный ID устройства"`
	Name     string `json:"name,omitempty" maxLength:"128" doc:"Имя устройства для отображения"`
	Secret   string `json:"secret,omitempty" doc:"Секрет сопряжения магазина"`
}

type registerOutput struct {
	Body registerResponse
}

type registerResponse struct {
	Token  string `json:"token,omitempty"`
	Status string `json:"status"`
}
