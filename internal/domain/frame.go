package domain

// Frame is one captured image awaiting geolocation. Frames are produced by
// the catalog in a fixed order and each index is visited exactly once,
// either as a result or as a drop.
type Frame struct {
	// Index is the position in the catalog, assigned at load time.
	Index int

	// Path is the image file path sent to the localizer.
	Path string
}
