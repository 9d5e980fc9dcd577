package models

// ConnectorPayload is the canonical inbound shape every connector adapter
// produces. The engine never sees connector wire formats; adapters collapse
// them into these rows before anything enters the core.
type ConnectorPayload struct {
	Kind       string       `json:"kind"` // connector kind, e.g. "jobber"
	WindowDays int          `json:"window_days"`
	Clients    []PayloadRow `json:"clients"`
	Estimates  []PayloadRow `json:"estimates"`
	Invoices   []PayloadRow `json:"invoices"`
	Jobs       []PayloadRow `json:"jobs"`
	Payments   []PayloadRow `json:"payments"`
}

// PayloadRow carries the connector-agnostic raw fields for one record.
// Timestamps arrive as RFC 3339 strings and amounts as free-form money
// strings; the normalizers own parsing, rejection and the field diet.
type PayloadRow struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	ClosedAt   string `json:"closed_at,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Status     string `json:"status,omitempty"`
	JobType    string `json:"job_type,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	EstimateID string `json:"estimate_id,omitempty"`
	InvoiceID  string `json:"invoice_id,omitempty"`
}
