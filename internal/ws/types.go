package ws

// mediaResult carries the shell's reply to a media-request back to the
// waiting acquisition call.
type mediaResult struct {
	Success bool
	Message string
}
