package mock

import (
	"net/http"
	"strings"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	userClass          = "_User"
	passwordHashField  = "_hashed_password"
	sessionTokenPrefix = "r:"
)

// signUp stores a new user unless the username is taken.
func (s *store) signUp(username string, fields map[string]any, hash []byte) (api.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userByNameLocked(username); ok {
		return nil, &apiError{http.StatusBadRequest, codeUsernameTaken, "Account already exists for this username."}
	}

	return s.insertLocked(userClass, fields, map[string]any{
		passwordHashField: string(hash),
	})
}

func (s *store) userByName(username string) (api.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.userByNameLocked(username)
	if !ok {
		return nil, false
	}
	return deepCopyObject(obj), true
}

func (s *store) userByNameLocked(username string) (api.Object, bool) {
	cl, ok := s.classes[userClass]
	if !ok {
		return nil, false
	}
	for _, id := range cl.order {
		if obj := cl.objects[id]; obj["username"] == username {
			return obj, true
		}
	}
	return nil, false
}

func (s *Server) newSession(userID string) string {
	token := sessionTokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.sessions.Set(token, userID)
	return token
}

func (s *Server) handleSignUp(c echo.Context) error {
	var fields map[string]any
	if err := c.Bind(&fields); err != nil {
		return respondError(c, err)
	}

	username, _ := fields["username"].(string)
	if username == "" {
		return respondError(c, &apiError{http.StatusBadRequest, codeUsernameMissing, "bad or missing username"})
	}
	password, _ := fields["password"].(string)
	if password == "" {
		return respondError(c, &apiError{http.StatusBadRequest, codePasswordMissing, "password is required"})
	}
	delete(fields, "password")

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.store.signUp(username, fields, hash)
	if err != nil {
		return respondError(c, err)
	}
	s.metrics.objectsCreated.WithLabelValues(userClass).Inc()

	return c.JSON(http.StatusCreated, map[string]any{
		"objectId":     user.ObjectID(),
		"createdAt":    user["createdAt"],
		"sessionToken": s.newSession(user.ObjectID()),
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	username := c.QueryParam("username")
	password := c.QueryParam("password")
	if username == "" {
		return respondError(c, &apiError{http.StatusBadRequest, codeUsernameMissing, "username is required"})
	}
	if password == "" {
		return respondError(c, &apiError{http.StatusBadRequest, codePasswordMissing, "password is required"})
	}

	invalid := &apiError{http.StatusNotFound, codeObjectNotFound, "Invalid username/password."}

	user, ok := s.store.userByName(username)
	if !ok {
		return respondError(c, invalid)
	}
	hash, _ := user[passwordHashField].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return respondError(c, invalid)
	}

	out := present(user)
	out["sessionToken"] = s.newSession(user.ObjectID())
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleLogout(c echo.Context) error {
	token := c.Request().Header.Get(query.HeaderSessionToken)
	if token == "" {
		return respondError(c, errInvalidSession())
	}
	s.sessions.Delete(token)
	return c.JSON(http.StatusOK, map[string]any{})
}

func (s *Server) handleMe(c echo.Context) error {
	userID, _ := c.Get(userIDKey).(string)
	if userID == "" {
		return respondError(c, errInvalidSession())
	}

	user, err := s.store.get(userClass, userID, nil)
	if err != nil {
		return respondError(c, errInvalidSession())
	}
	user["sessionToken"] = c.Request().Header.Get(query.HeaderSessionToken)
	return c.JSON(http.StatusOK, user)
}
