package commerce

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// list is a decoded list answer: the raw items plus the next page link,
// empty on the last page.
type list struct {
	Items []jx.Raw
	Next  string
}

// normalizeList accepts the list shapes the backend answers with: a bare
// array, or an object wrapping the array in "results" or "data" with an
// optional "next" link. An empty body or a bare null is an empty list.
func normalizeList(data []byte) (*list, error) {
	out := &list{Items: []jx.Raw{}}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	d := jx.DecodeBytes(data)

	switch tt := d.Next(); tt {
	case jx.Null:
		if err := d.Null(); err != nil {
			return nil, err
		}
	case jx.Array:
		if err := collect(d, out); err != nil {
			return nil, err
		}
	case jx.Object:
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "results", "data":
				switch d.Next() {
				case jx.Array:
					return collect(d, out)
				case jx.Null:
					return d.Null()
				default:
					return errors.Errorf("%q is not an array", key)
				}
			case "next":
				if d.Next() != jx.String {
					return d.Skip()
				}
				next, err := d.Str()
				if err != nil {
					return err
				}
				out.Next = next
				return nil
			default:
				return d.Skip()
			}
		}); err != nil {
			return nil, errors.Wrap(err, "decode list object")
		}
	default:
		return nil, errors.Errorf("unexpected list shape: %s", tt)
	}
	return out, nil
}

func collect(d *jx.Decoder, out *list) error {
	return d.Arr(func(d *jx.Decoder) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		out.Items = append(out.Items, append(jx.Raw(nil), raw...))
		return nil
	})
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(data []byte, status int) string {
	var msg string
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Object {
		_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "detail", "message", "error":
				if d.Next() == jx.String && msg == "" {
					s, err := d.Str()
					if err != nil {
						return err
					}
					msg = s
					return nil
				}
			}
			return d.Skip()
		})
	}
	if msg == "" {
		if text := strings.TrimSpace(string(data)); text != "" && len(text) < 256 && !strings.HasPrefix(text, "{") {
			msg = text
		} else {
			msg = http.StatusText(status)
		}
	}
	return msg
}
