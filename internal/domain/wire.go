package domain

// ModeDevice identifies the device-side client in init requests.
const ModeDevice = "device"

// InitRequest is the one-time session initialization payload. It is sent as
// raw JSON with no length prefix.
type InitRequest struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Meters int     `json:"meters"`
	Mode   string  `json:"mode"`
}

// InitResponse is the localizer's reply to an init request.
type InitResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

// FetchRequest asks the localizer to geolocate one frame. It is sent with a
// 4-byte ASCII length prefix so the receiver can frame the payload.
// LoggingID is an optional per-run identifier the localizer uses to
// correlate frames from the same run.
type FetchRequest struct {
	SessionID string `json:"session_id"`
	ImagePath string `json:"image_path"`
	LoggingID string `json:"logging_id,omitempty"`
}

// GPS is a geographic coordinate pair.
type GPS struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FetchResponse is the localizer's reply to a fetch request. Only the
// success flag and coordinates are interpreted; the raw payload is what gets
// journaled.
type FetchResponse struct {
	Success bool `json:"success"`
	GPS     GPS  `json:"gps"`
}
