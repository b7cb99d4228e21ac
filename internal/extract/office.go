package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// xmlLayout describes where text lives in an office XML part.
type xmlLayout struct {
	// paragraph elements end with a newline.
	paragraph map[string]bool
	// text elements hold character data. Nil collects all character data
	// inside paragraphs.
	text map[string]bool
	// inline elements stand for literal runes.
	inline map[string]string
}

var (
	wordLayout = xmlLayout{
		paragraph: map[string]bool{"p": true},
		text:      map[string]bool{"t": true},
		inline:    map[string]string{"tab": "\t", "br": "\n"},
	}
	odfLayout = xmlLayout{
		paragraph: map[string]bool{"p": true, "h": true},
		inline:    map[string]string{"s": " ", "tab": "\t", "line-break": "\n"},
	}
	slideLayout = xmlLayout{
		paragraph: map[string]bool{"p": true},
		text:      map[string]bool{"t": true},
		inline:    map[string]string{"br": "\n"},
	}
)

// extractXML walks r and returns its text, one paragraph per line.
func extractXML(r io.Reader, layout xmlLayout) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var (
		sb        strings.Builder
		line      strings.Builder
		paraDepth int
		textDepth int
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(s)
		}
		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case layout.paragraph[name]:
				paraDepth++
			case layout.text != nil && layout.text[name]:
				textDepth++
			}
			if lit, ok := layout.inline[name]; ok && paraDepth > 0 {
				line.WriteString(lit)
			}
		case xml.EndElement:
			name := t.Name.Local
			switch {
			case layout.paragraph[name]:
				paraDepth--
				if paraDepth == 0 {
					flush()
				}
			case layout.text != nil && layout.text[name]:
				textDepth--
			}
		case xml.CharData:
			if paraDepth == 0 && layout.text == nil {
				continue
			}
			if layout.text != nil && textDepth == 0 {
				continue
			}
			line.Write(t)
		}
	}
	flush()
	return sb.String(), nil
}

// zipPart extracts the text of one named member.
func zipPart(zr *zip.Reader, name string, layout xmlLayout) (string, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return extractXML(rc, layout)
	}
	return "", nil
}

func readZipPart(zipPath, member string, layout xmlLayout) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	return zipPart(&zr.Reader, member, layout)
}

func readDOCX(_ context.Context, p string) (string, error) {
	return readZipPart(p, "word/document.xml", wordLayout)
}

func readODT(_ context.Context, p string) (string, error) {
	return readZipPart(p, "content.xml", odfLayout)
}

// readPPTX concatenates slides in presentation order (slide1, slide2, ...).
func readPPTX(_ context.Context, p string) (string, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		dir, base := path.Split(f.Name)
		if dir != "ppt/slides/" || !strings.HasPrefix(base, "slide") || !strings.HasSuffix(base, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		text, err := zipPart(&zr.Reader, s.name, slideLayout)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.n, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
