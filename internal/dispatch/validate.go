package dispatch

import (
	"net/url"

	"github.com/neonbeat/back/internal/apperr"
	"github.com/neonbeat/back/internal/model"
)

func validateHSV(c model.HSV) error {
	if c.S < 0 || c.S > 1 {
		return apperr.New(apperr.Validation, "color saturation %.3f out of range [0,1]", c.S)
	}
	if c.V < 0 || c.V > 1 {
		return apperr.New(apperr.Validation, "color value %.3f out of range [0,1]", c.V)
	}
	return nil
}

func validateSongs(songs []model.Song) error {
	for _, s := range songs {
		u, err := url.Parse(s.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return apperr.New(apperr.Validation, "song %s has an invalid url %q", s.ID, s.URL)
		}
	}
	return nil
}
