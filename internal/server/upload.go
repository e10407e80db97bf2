package server

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadBytes bounds dataset uploads at 32 MiB.
const maxUploadBytes = 32 << 20

type uploadResponse struct {
	Tables []string `json:"tables"`
}

// handleUploadSQL ingests a SQL script: CREATE TABLE, ALTER TABLE and
// INSERT statements materialize tables and foreign-key edges.
func (s *Server) handleUploadSQL(w http.ResponseWriter, r *http.Request) {
	body, _, err := s.uploadBody(w, r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	names, err := s.cfg.Loader.LoadSQL(string(body))
	if err != nil {
		// a script that fails to parse is the client's problem
		s.badRequest(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{Tables: names})
}

// handleUploadCSV ingests one CSV file as a single table. The table name
// comes from the table query parameter, or from the uploaded filename.
func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	body, filename, err := s.uploadBody(w, r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	name, ok := uploadTableName(r, filename)
	if !ok {
		s.badRequest(w, "table name is required: pass ?table= or upload a named file")
		return
	}
	if err := s.cfg.Loader.LoadCSV(name, bytes.NewReader(body)); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{Tables: []string{name}})
}

// handleUploadJSON ingests one JSON document (a top-level array of
// objects) as a single table.
func (s *Server) handleUploadJSON(w http.ResponseWriter, r *http.Request) {
	body, filename, err := s.uploadBody(w, r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	name, ok := uploadTableName(r, filename)
	if !ok {
		s.badRequest(w, "table name is required: pass ?table= or upload a named file")
		return
	}
	if err := s.cfg.Loader.LoadJSON(name, body); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{Tables: []string{name}})
}

// uploadBody reads the upload payload from a multipart "file" part when
// present, or from the raw request body. It returns the payload and the
// original filename, if any.
func (s *Server) uploadBody(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return data, header.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

func uploadTableName(r *http.Request, filename string) (string, bool) {
	if name := r.URL.Query().Get("table"); name != "" {
		return name, true
	}
	if filename == "" {
		return "", false
	}
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return name, name != ""
}
