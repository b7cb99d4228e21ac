package extract

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// readMarkup returns HTML or XML bytes as text, tags included.
func readMarkup(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// readPlainText detects the encoding of a text file and decodes it to UTF-8.
func readPlainText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decodeText(data), nil
}

// decodeText converts data to UTF-8. Valid UTF-8 is returned as is;
// otherwise the detected charset is tried before falling back to the raw
// bytes with invalid sequences replaced.
func decodeText(data []byte) string {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}

	if res, err := chardet.NewTextDetector().DetectBest(data); err == nil {
		if enc, err := htmlindex.Get(res.Charset); err == nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(out)
			}
		}
	}

	return strings.ToValidUTF8(string(data), "�")
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
