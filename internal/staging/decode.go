package staging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/shaiso/dwloader/internal/config"
)

// StampLayout — формат дат в staging-таблицах.
const StampLayout = "2006-01-02 15:04:05"

// Decoder возвращает reader, перекодирующий файл в UTF-8.
// UTF-8 BOM отбрасывается при любой кодировке.
func Decoder(name string) (func(io.Reader) io.Reader, error) {
	var enc encoding.Encoding
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		enc = unicode.UTF8
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "latin1", "iso-8859-1":
		enc = charmap.ISO8859_1
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", config.ErrConfiguration, name)
	}

	return func(r io.Reader) io.Reader {
		return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
	}, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
}

// NormalizeDate приводит дату к StampLayout.
// Пустое или неразбираемое значение (в том числе несуществующая дата) даёт "".
func NormalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(StampLayout)
		}
	}
	return ""
}
