package shapefile

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncoding is assumed when neither the caller nor a .cpg sidecar names
// a code page.
const DefaultEncoding = "UTF-8"

// codec translates DBF bytes to and from UTF-8. A nil enc is the identity.
type codec struct {
	name string
	enc  encoding.Encoding
}

func (c codec) decode(s string) string {
	if c.enc == nil {
		return s
	}
	out, err := c.enc.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

func (c codec) encode(s string) string {
	if c.enc == nil {
		return s
	}
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	return out
}

// resolveCodec picks the code page: an explicit name wins, then the .cpg
// sidecar next to shpPath, then DefaultEncoding.
func resolveCodec(shpPath, explicit string) (codec, error) {
	name := strings.TrimSpace(explicit)
	if name == "" {
		data, err := os.ReadFile(basePath(shpPath) + ".cpg")
		switch {
		case err == nil:
			name = strings.TrimSpace(string(data))
		case !os.IsNotExist(err):
			return codec{}, eris.Wrap(err, "shapefile: read cpg")
		}
	}
	if name == "" {
		name = DefaultEncoding
	}
	return lookupCodec(name), nil
}

// lookupCodec maps a .cpg code page name to an encoding. Bare numeric code
// pages such as "1252" are treated as windows code pages. Unknown names fall
// back to UTF-8.
func lookupCodec(name string) codec {
	norm := strings.ToUpper(strings.TrimSpace(name))
	switch norm {
	case "UTF-8", "UTF8", "65001":
		return codec{name: DefaultEncoding}
	case "88591", "8859_1":
		norm = "ISO-8859-1"
	}
	if isAllDigits(norm) {
		norm = "windows-" + norm
	}

	enc, err := ianaindex.IANA.Encoding(norm)
	if err != nil || enc == nil {
		zap.L().Warn("shapefile: unknown code page, assuming UTF-8", zap.String("cpg", name))
		return codec{name: DefaultEncoding}
	}
	return codec{name: name, enc: enc}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
