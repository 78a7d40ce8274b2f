package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/angelmondragon/docreview-backend/internal/documents"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZIP  = "application/zip"
	mimeText = "text/plain"
)

// acceptedMimes lists the sniffed types each document type may carry.
// DOCX may sniff as a bare zip when the archive member order is unusual.
var acceptedMimes = map[enums.DocumentType][]string{
	enums.DocumentTypePDF:  {mimePDF},
	enums.DocumentTypeDOCX: {mimeDOCX, mimeZIP},
	enums.DocumentTypeTXT:  {mimeText},
}

// File is one uploaded file read into memory.
type File struct {
	Name    string
	Content []byte
}

// Result is what inspection learned about a file.
type Result struct {
	Name     string
	Metadata documents.Metadata
	Text     string
}

// Inspector validates uploads and extracts what the analysis step can use.
type Inspector struct {
	maxBytes    int64
	maxChars    int
	maxDOCXBody int64
	countPages  func(io.ReadSeeker) (int, error)
}

func NewInspector(maxBytes int64, maxChars int) *Inspector {
	return &Inspector{
		maxBytes:    maxBytes,
		maxChars:    maxChars,
		maxDOCXBody: defaultMaxDOCXBody,
		countPages:  pdfPageCount,
	}
}

// Read loads a multipart file, enforcing the size cap.
func (i *Inspector) Read(fh *multipart.FileHeader) (File, error) {
	if fh == nil {
		return File{}, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	if i.maxBytes > 0 && fh.Size > i.maxBytes {
		return File{}, tooLarge(fh.Filename, i.maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return File{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open uploaded file")
	}
	defer f.Close()

	var r io.Reader = f
	if i.maxBytes > 0 {
		r = io.LimitReader(f, i.maxBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return File{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read uploaded file")
	}
	if i.maxBytes > 0 && int64(len(content)) > i.maxBytes {
		return File{}, tooLarge(fh.Filename, i.maxBytes)
	}
	return File{Name: fh.Filename, Content: content}, nil
}

// Inspect sniffs the content type, checks it against the filename extension,
// and extracts text or page counts where the format allows.
func (i *Inspector) Inspect(file File) (Result, error) {
	name := cleanName(file.Name)
	if name == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if len(file.Content) == 0 {
		return Result{}, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is empty", name)
	}
	if i.maxBytes > 0 && int64(len(file.Content)) > i.maxBytes {
		return Result{}, tooLarge(name, i.maxBytes)
	}

	detected := mimetype.Detect(file.Content)
	docType, err := resolveType(name, detected)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Name: name,
		Metadata: documents.Metadata{
			Type:      docType,
			MIMEType:  detected.String(),
			SizeBytes: int64(len(file.Content)),
		},
	}

	switch docType {
	case enums.DocumentTypePDF:
		pages, err := i.countPages(bytes.NewReader(file.Content))
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s is not a readable pdf", name))
		}
		res.Metadata.PageCount = pages
	case enums.DocumentTypeDOCX:
		text, err := extractDOCXText(file.Content, i.maxChars, i.maxDOCXBody)
		if errors.Is(err, errDOCXBodyTooLarge) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeTooLarge, err, fmt.Sprintf("%s expands past the %d byte document limit", name, i.maxDOCXBody))
		}
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s is not a readable docx", name))
		}
		res.Text = truncate(text, i.maxChars)
	case enums.DocumentTypeTXT:
		res.Text = truncate(strings.ToValidUTF8(string(file.Content), string(utf8.RuneError)), i.maxChars)
	}

	return res, nil
}

func resolveType(name string, detected *mimetype.MIME) (enums.DocumentType, error) {
	ext := strings.ToLower(path.Ext(name))
	if ext != "" {
		docType, err := enums.ParseDocumentType(ext)
		if err != nil {
			return "", unsupported(name, detected)
		}
		if !sniffedAs(detected, acceptedMimes[docType]...) {
			return "", pkgerrors.Newf(pkgerrors.CodeUnsupported, "%s content does not match its extension", name).
				WithDetails(map[string]any{"file": name, "detected": detected.String(), "extension": ext})
		}
		return docType, nil
	}

	for _, docType := range []enums.DocumentType{enums.DocumentTypePDF, enums.DocumentTypeDOCX, enums.DocumentTypeTXT} {
		if sniffedAs(detected, acceptedMimes[docType][0]) {
			return docType, nil
		}
	}
	return "", unsupported(name, detected)
}

// sniffedAs walks the detected type and its parents so that e.g. a
// text/html body still counts as text/plain.
func sniffedAs(detected *mimetype.MIME, candidates ...string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, c := range candidates {
			if m.Is(c) {
				return true
			}
		}
	}
	return false
}

func pdfPageCount(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(rs, conf)
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}

func cleanName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimFunc(base, unicode.IsControl)
}

func unsupported(name string, detected *mimetype.MIME) error {
	return pkgerrors.Newf(pkgerrors.CodeUnsupported, "%s is not a pdf, docx or txt file", name).
		WithDetails(map[string]any{"file": name, "detected": detected.String()})
}

func tooLarge(name string, maxBytes int64) error {
	return pkgerrors.Newf(pkgerrors.CodeTooLarge, "%s exceeds the %d byte upload limit", name, maxBytes).
		WithDetails(map[string]any{"file": name, "max_bytes": maxBytes})
}
