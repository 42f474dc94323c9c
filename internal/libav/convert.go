package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/media"
)

func toAV(r media.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func fromAV(r astiav.Rational) media.Rational {
	return media.NewRational(r.Num(), r.Den())
}

func mediaType(t astiav.MediaType) media.MediaType {
	switch t {
	case astiav.MediaTypeVideo:
		return media.MediaTypeVideo
	case astiav.MediaTypeAudio:
		return media.MediaTypeAudio
	case astiav.MediaTypeData:
		return media.MediaTypeData
	case astiav.MediaTypeSubtitle:
		return media.MediaTypeSubtitle
	case astiav.MediaTypeAttachment:
		return media.MediaTypeAttachment
	default:
		return media.MediaTypeUnknown
	}
}

// codecError maps libav's drained sentinels onto the media ones.
func codecError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, astiav.ErrEagain):
		return media.ErrAgain
	case errors.Is(err, astiav.ErrEof):
		return media.ErrEOF
	default:
		return err
	}
}

// dictionary builds a libav dictionary. The caller owns the result.
func dictionary(values map[string]string) (*astiav.Dictionary, error) {
	d := astiav.NewDictionary()
	for k, v := range values {
		if err := d.Set(k, v, 0); err != nil {
			d.Free()
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}
	return d, nil
}

func dictionaryMap(d *astiav.Dictionary) map[string]string {
	out := make(map[string]string)
	if d == nil {
		return out
	}
	flags := astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix)
	for e := d.Get("", nil, flags); e != nil; e = d.Get("", e, flags) {
		out[e.Key()] = e.Value()
	}
	return out
}
