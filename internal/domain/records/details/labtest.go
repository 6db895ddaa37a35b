package details

// LabTest modela el detalle de un análisis de laboratorio ordenado.
type LabTest struct {
	TestName string `json:"test_name"`
	Result   string `json:"result,omitempty"`
	Unit     string `json:"unit,omitempty"`
}
