package product

import "time"

// Info is a product's registration record — the shared identity and
// protocol binding every device of that product inherits from.
type Info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ProjectID   string    `json:"project_id,omitempty"`
	ProjectName string    `json:"project_name,omitempty"`
	Protocol    string    `json:"protocol"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
