package uploads

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

const docxBodyPath = "word/document.xml"

// defaultMaxDOCXBody caps how many bytes of word/document.xml are inflated.
const defaultMaxDOCXBody = 32 << 20

var errDOCXBodyTooLarge = errors.New(docxBodyPath + " exceeds the inflate limit")

// extractDOCXText returns the visible text of word/document.xml, one line per
// paragraph. Reading stops once more than maxChars non-leading runes are
// collected (maxChars <= 0 reads everything), and never inflates more than
// maxBody bytes.
func extractDOCXText(content []byte, maxChars int, maxBody int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPath {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("%s missing", docxBodyPath)
	}
	if maxBody > 0 && body.UncompressedSize64 > uint64(maxBody) {
		return "", errDOCXBodyTooLarge
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxBodyPath, err)
	}
	defer rc.Close()

	var src io.Reader = rc
	var limited *io.LimitedReader
	if maxBody > 0 {
		// UncompressedSize64 comes from the archive header and may understate the stream.
		limited = &io.LimitedReader{R: rc, N: maxBody + 1}
		src = limited
	}
	overLimit := func() bool { return limited != nil && limited.N <= 0 }

	var (
		out     strings.Builder
		inText  bool
		started bool
		counted int
	)
	emit := func(s string) {
		if !started {
			rest := strings.TrimLeftFunc(s, unicode.IsSpace)
			if rest == "" {
				out.WriteString(s)
				return
			}
			started = true
			counted += utf8.RuneCountInString(rest)
		} else {
			counted += utf8.RuneCountInString(s)
		}
		out.WriteString(s)
	}
	full := func() bool { return maxChars > 0 && counted > maxChars }

	dec := xml.NewDecoder(src)
	for !full() {
		tok, err := dec.Token()
		if overLimit() {
			return "", errDOCXBodyTooLarge
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBodyPath, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				emit("\t")
			case "br":
				emit("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				emit("\n")
			}
		case xml.CharData:
			if inText {
				emit(string(t))
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
