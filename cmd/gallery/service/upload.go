package service

// Upload carries an already-extracted multipart file: raw bytes, the
// extension of the uploaded filename, and the declared content type. The
// core never parses multipart bodies itself.
type Upload struct {
	Data      []byte
	Extension string
	MimeType  string
}
