package prodapi

// types.go — formas crudas de las respuestas del API de producción.

// apiRecord es una fila de producción mensual tal y como la entrega el API.
// Las tasas vienen como punteros: el API emite null cuando no hay reporte.
type apiRecord struct {
	WellID     string   `json:"api_wellno"`
	ReportDate string   `json:"report_date"`
	Oil        *float64 `json:"oil_bbls"`
	Gas        *float64 `json:"gas_mcf"`
}

// productionResponse es una página del endpoint /production.
type productionResponse struct {
	Data  []apiRecord `json:"data"`
	Total int         `json:"total"`
}
