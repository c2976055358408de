package http

import (
	"errors"
	"net/http"

	"pfm/internal/services"
)

const (
	fieldLogo    = "logo"
	fieldReceipt = "receiptFilePath"
)

// uploadField is an inline file input that uploads on change and keeps the
// stored path in a hidden input named Field for the enclosing form.
type uploadField struct {
	Field  string
	Label  string
	Mode   services.UploadMode
	Accept string
	Path   string
}

var uploadFields = map[string]uploadField{
	fieldLogo:    {Field: fieldLogo, Label: "Logo", Mode: services.ModeImage},
	fieldReceipt: {Field: fieldReceipt, Label: "Receipt", Mode: services.ModeBoth},
}

func newUploadField(name, path string) uploadField {
	f := uploadFields[name]
	f.Accept = f.Mode.Accept()
	f.Path = path
	return f
}

type uploadsView struct {
	Accept string
}

type uploadResult struct {
	Path string
}

func (s *Server) handleUploadsPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "uploads", "Uploads", "uploads", "", uploadsView{Accept: services.ModeBoth.Accept()})
}

// handleUpload stores one multipart file through the API. With a field query
// parameter the answer is the refreshed inline field, otherwise a result box.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field := q.Get("field")
	if field != "" {
		if _, ok := uploadFields[field]; !ok {
			s.fail(w, r, errUnknownField)
			return
		}
	}

	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, services.ErrFileTooLarge)
			return
		}
		s.fail(w, r, errBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	modeValue := q.Get("mode")
	if modeValue == "" {
		modeValue = r.FormValue("mode")
	}
	mode, err := services.ParseUploadMode(modeValue)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, errBadRequest)
		return
	}
	defer file.Close()

	path, err := s.uploads.Upload(r.Context(), identity(r), mode, header.Filename, header.Size, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	b := NewHTMXResponse().TriggerSuccessNotification("Uploaded " + header.Filename)
	if field != "" {
		s.renderPartial(w, r, b, "upload_field", newUploadField(field, path))
		return
	}
	s.renderPartial(w, r, b.TriggerFormReset(), "upload_result", uploadResult{Path: path})
}
