package domain

import "time"

// Upload describe un archivo subido por un usuario.
type Upload struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	FileType     string    `json:"file_type"`
	FileSize     int64     `json:"file_size"`
	URL          string    `json:"url"`
	Kind         string    `json:"tipo"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
