package canvas

import (
	"encoding/base64"
	"errors"
	"strings"
)

const pngDataURLPrefix = "data:image/png;base64,"

var ErrBadDataURL = errors.New("invalid image data url")

func EncodeDataURL(png []byte) string {
	return pngDataURLPrefix + base64.StdEncoding.EncodeToString(png)
}

// DecodeDataURL accepts "data:<mime>;base64,<payload>" or a bare base64
// payload and returns the decoded bytes.
func DecodeDataURL(s string) ([]byte, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.Contains(s[:i], ";base64") {
			return nil, ErrBadDataURL
		}
		payload = s[i+1:]
	}
	if payload == "" {
		return nil, ErrBadDataURL
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrBadDataURL
	}
	return b, nil
}
