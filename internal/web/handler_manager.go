package web

import (
	"net/http"

	"github.com/vbonduro/marketlabel/internal/domain"
)

func (s *Server) handleManagerPage(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	s.renderManagerPage(w, r, sess, http.StatusOK, "")
}

func (s *Server) renderManagerPage(w http.ResponseWriter, r *http.Request, sess domain.Session, status int, errMsg string) {
	page := s.newPage(w, r, &sess)
	page.Error = errMsg

	var err error
	if page.Companies, err = s.accounts.ListCompanies(r.Context()); err == nil {
		if page.Users, err = s.accounts.ListUsers(r.Context()); err == nil {
			page.Labeled, err = s.labels.LabeledByUser(r.Context())
		}
	}
	if err != nil {
		s.logError(r, "failed to load manager data", err)
		page.Error = userMessage(err)
		status = statusFor(err)
	}
	s.render(w, r, status, page, "manager.html")
}

func (s *Server) handleAddCompany(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	name := r.PostFormValue("company")

	if err := s.accounts.AddCompany(r.Context(), name); err != nil {
		s.logError(r, "failed to add company", err)
		s.renderManagerPage(w, r, sess, statusFor(err), userMessage(err))
		return
	}

	s.logger.Info("company added via manager", "request_id", requestID(r.Context()), "by", sess.UserID)
	s.flash(w, r, "Company added.")
	http.Redirect(w, r, "/manager", http.StatusSeeOther)
}

// handleReloadCatalog drops the cached dataset so the next assignment reads
// the latest dataset folder.
func (s *Server) handleReloadCatalog(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	if s.catalog != nil {
		s.catalog.Invalidate()
	}
	s.logger.Info("catalog reload requested", "request_id", requestID(r.Context()), "by", sess.UserID)
	s.flash(w, r, "Dataset reloaded.")
	http.Redirect(w, r, "/manager", http.StatusSeeOther)
}
