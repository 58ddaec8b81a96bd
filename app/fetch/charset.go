package fetch

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DecodeHTML converts an HTML page to UTF-8. A non-empty override names the
// source encoding (WHATWG label, e.g. "shift_jis"); otherwise it is detected
// from the BOM, the Content-Type header and <meta> tags.
func DecodeHTML(body []byte, contentType string, override string) ([]byte, error) {
	if override != "" {
		enc, err := htmlindex.Get(override)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", override, err)
		}
		decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s page: %w", override, err)
		}
		return decoded, nil
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect page encoding: %w", err)
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}

	return decoded, nil
}

// DecodePage is DecodeHTML for a fetched page. Rendered pages are returned
// as-is and the override is ignored for them.
func DecodePage(page *Page, override string) ([]byte, error) {
	if page.Rendered {
		return page.Body, nil
	}
	return DecodeHTML(page.Body, page.ContentType, override)
}
