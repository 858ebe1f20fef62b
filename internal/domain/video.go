package domain

import "time"

type AspectRatio string

const (
	AspectRatioLandscape AspectRatio = "16:9"
	AspectRatioPortrait  AspectRatio = "9:16"

	DefaultAspectRatio = AspectRatioPortrait
)

func (a AspectRatio) IsValid() bool {
	return a == AspectRatioLandscape || a == AspectRatioPortrait
}

// OrDefault returns the portrait ratio when a is empty.
func (a AspectRatio) OrDefault() AspectRatio {
	if a == "" {
		return DefaultAspectRatio
	}
	return a
}

// Video describes a generated clip that has been fetched into the media store.
type Video struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	MIMEType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// MediaObject is a stored media blob.
type MediaObject struct {
	ID        string    `json:"id"`
	MIMEType  string    `json:"mimeType"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}
