package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/akjtjhklf/fnb-hrms-client/tokenstore"
)

// Employee is the resource served under /employees
type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name" validate:"required"`
	Position   string `json:"position" validate:"required,oneof=cashier barista chef waiter manager"`
	Department string `json:"department"`
}

// Shift is the resource served under /schedule
type Shift struct {
	EmployeeID string    `json:"employeeId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// User is the current-user payload
type User struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	OrgID string `json:"orgId"`
}

var seedEmployees = []Employee{
	{ID: "emp-1", Name: "Linh Tran", Position: "barista", Department: "front"},
	{ID: "emp-2", Name: "Minh Pham", Position: "chef", Department: "kitchen"},
	{ID: "emp-3", Name: "An Nguyen", Position: "cashier", Department: "front"},
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type envelope struct {
	Data any `json:"data"`
}

// errorBody is the error shape of the HRMS backend
type errorBody struct {
	StatusCode int       `json:"statusCode"`
	Message    any       `json:"message"`
	RequestID  string    `json:"requestId,omitempty"`
	Path       string    `json:"path"`
	Timestamp  time.Time `json:"timestamp"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Username != s.opts.Username || req.Password != s.opts.Password {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid username or password")
	}

	access, refresh, err := s.issue()
	if err != nil {
		return err
	}
	orgToken, err := s.OrgToken()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Data: map[string]string{
		"accessToken":       access,
		"refreshToken":      refresh,
		"organizationToken": orgToken,
	}})
}

func (s *Server) refreshToken(c echo.Context) error {
	s.refreshCalls.Add(1)
	if s.opts.RefreshDelay > 0 {
		select {
		case <-time.After(s.opts.RefreshDelay):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	s.mu.Lock()
	valid := s.refresh[req.RefreshToken]
	delete(s.refresh, req.RefreshToken)
	s.mu.Unlock()
	if !valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token is invalid or expired")
	}

	access, refresh, err := s.issue()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"accessToken": access, "refreshToken": refresh})
}

func (s *Server) logout(c echo.Context) error {
	s.logoutCalls.Add(1)
	if token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "); ok {
		s.mu.Lock()
		delete(s.access, token)
		s.mu.Unlock()
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Signed out"})
}

func (s *Server) me(c echo.Context) error {
	claims, _ := c.Get("claims").(*tokenstore.Claims)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing session")
	}
	return c.JSON(http.StatusOK, envelope{Data: User{ID: claims.Subject, Role: claims.Role, OrgID: claims.OrgID}})
}

func (s *Server) employees(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Data: seedEmployees})
}

func (s *Server) schedule(c echo.Context) error {
	day := time.Date(2026, time.October, 14, 7, 0, 0, 0, time.UTC)
	shifts := make([]Shift, 0, len(seedEmployees))
	for i, emp := range seedEmployees {
		start := day.Add(time.Duration(i*4) * time.Hour)
		shifts = append(shifts, Shift{EmployeeID: emp.ID, Start: start, End: start.Add(8 * time.Hour)})
	}
	return c.JSON(http.StatusOK, envelope{Data: shifts})
}

func (s *Server) departments(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Data: []string{"front", "kitchen"}})
}

func (s *Server) createEmployee(c echo.Context) error {
	var emp Employee
	if err := c.Bind(&emp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body")
	}
	if err := c.Validate(&emp); err != nil {
		return err
	}
	emp.ID = fmt.Sprintf("emp-%d", len(seedEmployees)+1)
	return c.JSON(http.StatusCreated, envelope{Data: emp})
}

// requestValidator adapts go-playground/validator to echo
type requestValidator struct {
	validate *validator.Validate
}

// Validate returns a 422 carrying one message per failed field
func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, messages)
}

// errorHandler renders every error in the backend's error shape
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var message any = "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		message = he.Message
	}

	body := errorBody{
		StatusCode: status,
		Message:    message,
		RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
		Path:       c.Request().URL.Path,
		Timestamp:  time.Now().UTC(),
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}
