package domain

import "time"

// Settings are console-level preferences edited on the settings page.
// They are stored by the console itself; the upstream API has no settings contract.
type Settings struct {
	SiteName          string    `json:"siteName" validate:"required,max=100"`
	SupportEmail      string    `json:"supportEmail" validate:"required,email"`
	MaintenanceMode   bool      `json:"maintenanceMode"`
	AllowRegistration bool      `json:"allowRegistration"`
	MaxLoginAttempts  int       `json:"maxLoginAttempts" validate:"min=1,max=100"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// DefaultSettings returns the settings used before anything has been saved.
func DefaultSettings() Settings {
	return Settings{
		SiteName:          "Finance App",
		SupportEmail:      "support@financeapp.com",
		MaintenanceMode:   false,
		AllowRegistration: true,
		MaxLoginAttempts:  5,
	}
}
