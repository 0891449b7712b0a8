package health

// Input represents the input for health check endpoint
type Input struct{}

// Output represents the output for health check endpoint
type Output struct {
	Body Response
}

// Response тело ответа; по полю service устройства в локальной сети узнают сервер
type Response struct {
	Status  string `json:"status" example:"OK" doc:"Health status of the service"`
	Service string `json:"service" example:"stockcount"`
	Name    string `json:"name" example:"Tienda Centro"`
	Version string `json:"version" example:"1.0.0"`
}
