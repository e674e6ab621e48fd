package rest

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/server/auth"
	"github.com/dmitrijs2005/petmarket/internal/server/services"
	"github.com/dmitrijs2005/petmarket/internal/server/storage"
	"github.com/go-chi/chi/v5"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// claims returns the claims attached by RequireAuthenticated.
func (s *Server) claims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok {
		s.fail(w, r, common.ErrorUnauthorized)
	}
	return c, ok
}

// openSession sets the refresh cookie and writes the session body.
func (s *Server) openSession(w http.ResponseWriter, status int, session *services.Session) {
	s.cookies.set(w, session.Tokens.RefreshToken)
	writeJSON(w, status, newSessionResponse(session))
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var in services.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.auth.Signup(r.Context(), in); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageBody{Message: "verification email sent"})
}

// allowedRedirect reports whether target points into the frontend.
func (s *Server) allowedRedirect(target string) bool {
	if s.frontendURL == "" || target == "" {
		return false
	}
	return target == s.frontendURL || strings.HasPrefix(target, s.frontendURL+"/") ||
		strings.HasPrefix(target, s.frontendURL+"?")
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	session, err := s.auth.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if target := r.URL.Query().Get("redirect"); s.allowedRedirect(target) {
		s.cookies.set(w, session.Tokens.RefreshToken)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	s.openSession(w, http.StatusOK, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	session, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.openSession(w, http.StatusOK, session)
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		s.fail(w, r, common.ErrorUnauthorized)
		return
	}

	session, err := s.auth.Refresh(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.cookies.clear(w)
		}
		s.fail(w, r, err)
		return
	}

	s.openSession(w, http.StatusOK, session)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	if err := s.auth.Logout(r.Context(), c.UserID); err != nil {
		s.fail(w, r, err)
		return
	}

	s.cookies.clear(w)
	writeJSON(w, http.StatusOK, messageBody{Message: "logged out"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotPasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.auth.ForgotPassword(r.Context(), in.Email); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageBody{Message: "password reset email sent"})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	session, err := s.auth.ResetPassword(r.Context(), in.Token, in.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.openSession(w, http.StatusOK, session)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	account, err := s.auth.Profile(r.Context(), c.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountView(account))
}

type updateMeRequest struct {
	Name string `json:"name"`
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	var in updateMeRequest
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	account, err := s.auth.UpdateName(r.Context(), c.UserID, in.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountView(account))
}

func (s *Server) deleteMe(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	if err := s.auth.DeleteAccount(r.Context(), c.UserID); err != nil {
		s.fail(w, r, err)
		return
	}

	s.cookies.clear(w)
	writeJSON(w, http.StatusOK, messageBody{Message: "account deleted"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	var in changePasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	session, err := s.auth.ChangePassword(r.Context(), c.UserID, in.CurrentPassword, in.NewPassword)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.openSession(w, http.StatusOK, session)
}

func (s *Server) becomeSeller(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Deprecation", "true")
	w.Header().Set("Link", `</onboard>; rel="successor-version"`)

	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	var in services.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	account, err := s.seller.BecomeSeller(r.Context(), c.UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountView(account))
}

func (s *Server) onboard(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	in, err := s.parseOnboarding(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.seller.Onboard(r.Context(), c.UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, onboardResponse{
		User:    newAccountView(res.Account),
		Product: newProductView(res.Product),
	})
}

// parseOnboarding reads the multipart onboarding form. Only decoding is
// done here; field and file checks belong to the service.
func (s *Server) parseOnboarding(w http.ResponseWriter, r *http.Request) (services.OnboardingInput, error) {
	var in services.OnboardingInput

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, common.NewValidationError("", "upload exceeds %d bytes", s.maxUploadBytes)
		}
		return in, common.NewValidationError("", "request must be multipart/form-data")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var err error
	if in.Profile, err = services.ParseProfile(r.FormValue(services.FieldProfile)); err != nil {
		return in, err
	}
	if in.Listing, err = services.ParseListing(r.FormValue(services.FieldListing)); err != nil {
		return in, err
	}

	files := r.MultipartForm.File
	if in.Files.BrandImage, err = firstFile(files[services.FieldBrandImage]); err != nil {
		return in, err
	}
	for _, fh := range files[services.FieldProductPhotos] {
		f, err := readFile(fh)
		if err != nil {
			return in, err
		}
		in.Files.ProductPhotos = append(in.Files.ProductPhotos, f)
	}
	if in.Files.ProductVideo, err = firstFile(files[services.FieldProductVideo]); err != nil {
		return in, err
	}
	if in.Files.IdentityDocument, err = firstFile(files[services.FieldIdentityDocument]); err != nil {
		return in, err
	}

	return in, nil
}

func firstFile(fhs []*multipart.FileHeader) (*storage.File, error) {
	if len(fhs) == 0 {
		return nil, nil
	}
	f, err := readFile(fhs[0])
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func readFile(fh *multipart.FileHeader) (storage.File, error) {
	src, err := fh.Open()
	if err != nil {
		return storage.File{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return storage.File{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}

	return storage.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s *Server) updateSellerSettings(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	var in services.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	account, err := s.seller.UpdateSettings(r.Context(), c.UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountView(account))
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	var in services.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.seller.CreateProduct(r.Context(), c.UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newProductView(p))
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	c, ok := s.claims(w, r)
	if !ok {
		return
	}

	list, err := s.seller.ListProducts(r.Context(), c.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := productsResponse{Products: make([]productView, 0, len(list))}
	for i := range list {
		out.Products = append(out.Products, newProductView(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
