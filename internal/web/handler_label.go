package web

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/marketlabel/internal/domain"
)

func (s *Server) handleLabelPage(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	s.renderLabelPage(w, r, sess, http.StatusOK, "")
}

// renderLabelPage shows the current assignment. errMsg, when set, reports a
// rejected submission above a fresh assignment.
func (s *Server) renderLabelPage(w http.ResponseWriter, r *http.Request, sess domain.Session, status int, errMsg string) {
	page := s.newPage(w, r, &sess)
	page.Error = errMsg

	a, err := s.labels.Assign(r.Context(), sess)
	if err != nil {
		s.logError(r, "failed to assign item", err)
		page.Error = userMessage(err)
		s.render(w, r, statusFor(err), page, "label.html")
		return
	}
	page.Assignment = a
	s.render(w, r, status, page, "label.html")
}

func (s *Server) handleSubmitLabel(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	// A missing or non-numeric score is left at zero and rejected as out of range.
	score, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("score")))
	photoURL := r.PostFormValue("photo_url")
	flag := r.PostFormValue("binary_flag")

	label, progress, err := s.labels.Submit(r.Context(), sess, photoURL, score, flag)
	if err != nil {
		s.logError(r, "failed to submit label", err)
		s.renderLabelPage(w, r, sess, statusFor(err), userMessage(err))
		return
	}

	s.logger.Debug("label stored",
		"request_id", requestID(r.Context()),
		"user_id", sess.UserID,
		"image_file", label.ImageFile,
		"labeled", progress.Labeled,
	)
	s.flash(w, r, "Label submitted!")
	http.Redirect(w, r, "/label", http.StatusSeeOther)
}

// handleStartBatch dismisses a finished batch so labeling continues at
// position zero.
func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	next, err := s.labels.AcknowledgeBatch(r.Context(), sess)
	if err != nil {
		s.logError(r, "failed to start batch", err)
		s.renderLabelPage(w, r, sess, statusFor(err), userMessage(err))
		return
	}
	if err := s.sessions.Save(w, r, next); err != nil {
		s.logError(r, "failed to save session", err)
		http.Error(w, "failed to save session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/label", http.StatusSeeOther)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, _ domain.Session) {
	rc, mimeType, err := s.photos.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.logError(r, "failed to get image", err)
		http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
		return
	}
	defer closeWithLog(rc, s.logger)

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("failed to stream image", "request_id", requestID(r.Context()), "error", err)
	}
}
