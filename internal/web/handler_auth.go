package web

import (
	"net/http"

	"github.com/vbonduro/marketlabel/internal/service"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.Load(r); ok {
		http.Redirect(w, r, "/label", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.Load(r); ok {
		http.Redirect(w, r, "/label", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, s.newPage(w, r, nil), "login.html")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")

	sess, err := s.accounts.Login(r.Context(), email, r.PostFormValue("password"))
	if err == nil {
		// Batches finished before this login are not shown as pending.
		*sess, err = s.labels.AcknowledgeBatch(r.Context(), *sess)
	}
	if err != nil {
		s.logError(r, "login failed", err)
		page := s.newPage(w, r, nil)
		page.Email = email
		page.Error = userMessage(err)
		s.render(w, r, statusFor(err), page, "login.html")
		return
	}

	if err := s.sessions.Save(w, r, *sess); err != nil {
		s.logError(r, "failed to save session", err)
		http.Error(w, "failed to save session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/label", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	page := s.newPage(w, r, nil)
	companies, err := s.accounts.ListCompanies(r.Context())
	if err != nil {
		s.logError(r, "failed to list companies", err)
		page.Error = userMessage(err)
		s.render(w, r, statusFor(err), page, "register.html")
		return
	}
	page.Companies = companies
	s.render(w, r, http.StatusOK, page, "register.html")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := service.RegisterInput{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Company:   r.PostFormValue("company"),
		Password:  r.PostFormValue("password"),
	}

	if _, err := s.accounts.Register(r.Context(), in); err != nil {
		s.logError(r, "registration failed", err)
		page := s.newPage(w, r, nil)
		page.Form = in
		page.Form.Password = ""
		page.Error = userMessage(err)
		// Best effort: the form still renders without the company list.
		page.Companies, _ = s.accounts.ListCompanies(r.Context())
		s.render(w, r, statusFor(err), page, "register.html")
		return
	}

	s.flash(w, r, "Account created! Please login.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(w, r); err != nil {
		s.logError(r, "failed to clear session", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
