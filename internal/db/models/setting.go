package models

// Setting represents a configuration setting stored in the database.
// Values are opaque JSON documents owned by the API clients.
type Setting struct {
	ID    uint64 `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"unique" json:"name"`
	// Value is rendered by the settings handler as raw JSON, not base64.
	Value []byte `gorm:"type:blob" json:"-"`
}
