package config

import (
	"fmt"
	"strings"
)

// Format is the output image encoding.
type Format int

const (
	JPEG Format = iota
	PNG
	WEBP
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WEBP, nil
	default:
		return JPEG, fmt.Errorf("%w: unknown format %q (want jpg, png or webp)", ErrInvalidArgument, s)
	}
}

func (f Format) Valid() bool {
	switch f {
	case JPEG, PNG, WEBP:
		return true
	}
	return false
}

// Ext is the file extension without the dot, as used in frame file names.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return "jpg"
	case PNG:
		return "png"
	case WEBP:
		return "webp"
	}
	return ""
}

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case WEBP:
		return "webp"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unknown format %d", ErrInvalidArgument, int(f))
	}
	return []byte(f.Ext()), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
