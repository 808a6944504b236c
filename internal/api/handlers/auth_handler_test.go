package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/pgfinder/internal/api/handlers"
	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

func newAuthHandler(service *mockAuthService) *handlers.AuthHandler {
	return handlers.NewAuthHandler(service, middleware.Cookies{Secure: true}, "http://api.example/", "http://app.example", nil)
}

func testSession() *entities.AuthSession {
	now := time.Now()
	return &entities.AuthSession{
		User: &entities.User{ID: "u1", Name: "Asha", Email: "asha@example.com", PasswordHash: "secret-hash"},
		Tokens: &entities.TokenPair{
			AccessToken:      "access-jwt",
			RefreshToken:     "refresh-jwt",
			AccessExpiresAt:  now.Add(15 * time.Minute),
			RefreshExpiresAt: now.Add(30 * 24 * time.Hour),
		},
	}
}

func cookieMap(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestAuthHandler_Signup_SetsCookies(t *testing.T) {
	service := &mockAuthService{}
	service.On("Signup", mock.Anything, mock.MatchedBy(func(in services.SignupInput) bool {
		return in.Email == "asha@example.com" && in.Role == "pgOwner"
	})).Return(testSession(), nil).Once()

	body := `{"name":"Asha","email":"asha@example.com","password":"Secret#123","passwordConfirm":"Secret#123","role":"pgOwner"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/signup", strings.NewReader(body))
	w := httptest.NewRecorder()
	newAuthHandler(service).Signup(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	cookies := cookieMap(w)
	require.Contains(t, cookies, middleware.AccessTokenCookie)
	require.Contains(t, cookies, middleware.RefreshTokenCookie)
	assert.Equal(t, "access-jwt", cookies[middleware.AccessTokenCookie].Value)
	assert.True(t, cookies[middleware.RefreshTokenCookie].HttpOnly)
	assert.True(t, cookies[middleware.RefreshTokenCookie].Secure)
	assert.NotContains(t, w.Body.String(), "secret-hash")
	assert.NotContains(t, w.Body.String(), "refresh-jwt")
}

func TestAuthHandler_Login_PassesOldRefreshCookie(t *testing.T) {
	service := &mockAuthService{}
	service.On("Login", mock.Anything, "asha@example.com", "Secret#123", "old-refresh").Return(testSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", strings.NewReader(`{"email":"asha@example.com","password":"Secret#123"}`))
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "old-refresh"})
	w := httptest.NewRecorder()
	newAuthHandler(service).Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestAuthHandler_Login_WrongCredentials(t *testing.T) {
	service := &mockAuthService{}
	service.On("Login", mock.Anything, "asha@example.com", "nope", "").
		Return(nil, apperrors.NewUnauthorizedError(services.MsgWrongCredentials)).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", strings.NewReader(`{"email":"asha@example.com","password":"nope"}`))
	w := httptest.NewRecorder()
	newAuthHandler(service).Login(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.MsgWrongCredentials, decodeBody(t, w)["message"])
	assert.Empty(t, w.Result().Cookies())
}

func TestAuthHandler_Logout_ClearsCookiesEvenOnError(t *testing.T) {
	service := &mockAuthService{}
	service.On("Logout", mock.Anything, "").Return(apperrors.NewBadRequestError(services.MsgInvalidRequest)).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/logout", nil)
	w := httptest.NewRecorder()
	newAuthHandler(service).Logout(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	cookies := cookieMap(w)
	assert.Len(t, cookies, 2)
	assert.Empty(t, cookies[middleware.AccessTokenCookie].Value)
}

func TestAuthHandler_ForgotPassword_UsesPublicURL(t *testing.T) {
	service := &mockAuthService{}
	service.On("ForgotPassword", mock.Anything, "asha@example.com", "http://api.example").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/forgotPassword", strings.NewReader(`{"email":"asha@example.com"}`))
	w := httptest.NewRecorder()
	newAuthHandler(service).ForgotPassword(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Token sent to email", decodeBody(t, w)["message"])
}

func TestAuthHandler_ForgotPassword_MailFailure(t *testing.T) {
	service := &mockAuthService{}
	service.On("ForgotPassword", mock.Anything, "asha@example.com", mock.Anything).
		Return(apperrors.NewInternalError("There was an error sending the email. Try again later!", nil).Expose()).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/forgotPassword", strings.NewReader(`{"email":"asha@example.com"}`))
	w := httptest.NewRecorder()
	newAuthHandler(service).ForgotPassword(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "There was an error sending the email. Try again later!", body["message"])
}

func TestAuthHandler_ResetPassword_SplitsTokenAndEmail(t *testing.T) {
	service := &mockAuthService{}
	in := services.PasswordInput{Password: "Secret#456", PasswordConfirm: "Secret#456"}
	service.On("ResetPassword", mock.Anything, "abc123", "asha@example.com", in).Return(testSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/user/resetPassword/abc123&asha@example.com",
		strings.NewReader(`{"password":"Secret#456","passwordConfirm":"Secret#456"}`))
	req.SetPathValue("token", "abc123&asha@example.com")
	w := httptest.NewRecorder()
	newAuthHandler(service).ResetPassword(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, cookieMap(w), 2)
	service.AssertExpectations(t)
}

func TestAuthHandler_ResetPassword_MalformedPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/user/resetPassword/abc123", strings.NewReader(`{}`))
	req.SetPathValue("token", "abc123")
	w := httptest.NewRecorder()
	newAuthHandler(&mockAuthService{}).ResetPassword(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Token is invalid or has expired", decodeBody(t, w)["message"])
}

func TestAuthHandler_Refresh_SetsOnlyAccessCookie(t *testing.T) {
	service := &mockAuthService{}
	session := testSession()
	session.Tokens.RefreshToken = ""
	service.On("Refresh", mock.Anything, "refresh-jwt").Return(session, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "refresh-jwt"})
	w := httptest.NewRecorder()
	newAuthHandler(service).Refresh(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	cookies := cookieMap(w)
	assert.Len(t, cookies, 1)
	assert.Contains(t, cookies, middleware.AccessTokenCookie)
}

func TestAuthHandler_UpdatePassword(t *testing.T) {
	service := &mockAuthService{}
	service.On("UpdatePassword", mock.Anything, "u1", mock.MatchedBy(func(in services.UpdatePasswordInput) bool {
		return in.PasswordCurrent == "Secret#123" && in.Password == "Secret#456"
	}), "refresh-jwt").Return(testSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/user/updatePassword",
		strings.NewReader(`{"passwordCurrent":"Secret#123","password":"Secret#456","passwordConfirm":"Secret#456"}`))
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "refresh-jwt"})
	w := httptest.NewRecorder()
	newAuthHandler(service).UpdatePassword(w, asUser(req, &entities.User{ID: "u1"}))

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestAuthHandler_GoogleLogin_Redirects(t *testing.T) {
	service := &mockAuthService{}
	service.On("GoogleAuthURL").Return("https://accounts.google.com/o/oauth2/auth?state=xyz", nil).Once()

	w := httptest.NewRecorder()
	newAuthHandler(service).GoogleLogin(w, httptest.NewRequest(http.MethodGet, "/api/v1/user/auth/google", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=xyz", w.Header().Get("Location"))
}

func TestAuthHandler_GoogleCallback_RedirectsToClient(t *testing.T) {
	service := &mockAuthService{}
	service.On("GoogleCallback", mock.Anything, "xyz", "code-1").Return(testSession(), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/auth/google/callback?state=xyz&code=code-1", nil)
	w := httptest.NewRecorder()
	newAuthHandler(service).GoogleCallback(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Location"))
	assert.Len(t, cookieMap(w), 2)
}

func TestAuthHandler_GoogleCallback_BadState(t *testing.T) {
	service := &mockAuthService{}
	service.On("GoogleCallback", mock.Anything, "forged", "code-1").
		Return(nil, apperrors.NewBadRequestError(services.MsgInvalidRequest)).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/auth/google/callback?state=forged&code=code-1", nil)
	w := httptest.NewRecorder()
	newAuthHandler(service).GoogleCallback(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
