package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "identity not found"},
			want: "identity not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to load identity",
				Cause:   errors.New("connection refused"),
			},
			want: "failed to load identity: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{Code: ErrCodeInternal, Message: "wrapped error", Cause: cause}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"NotFound", NotFound("identity not found"), ErrCodeNotFound, "identity not found"},
		{"Validation", Validation("username is required"), ErrCodeValidation, "username is required"},
		{"AuthenticationFailed", AuthenticationFailed(nil), ErrCodeAuthentication, "invalid credentials"},
		{"LockedOut", LockedOut("account locked"), ErrCodeLockedOut, "account locked"},
		{"SessionNotFound", SessionNotFound(), ErrCodeSessionNotFound, "session not found"},
		{"SessionExpired", SessionExpired(), ErrCodeSessionExpired, "session expired"},
		{"Internal", Internal("boom"), ErrCodeInternal, "boom"},
		{"Internalf", Internalf("store %s failed", "redis"), ErrCodeInternal, "store redis failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("%s().Code = %v, want %v", tt.name, tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("%s().Message = %v, want %v", tt.name, tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("secret", "secret is too short")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if err.Field != "secret" {
		t.Errorf("ValidationField().Field = %v, want %v", err.Field, "secret")
	}
}

func TestAuthenticationFailed_SameMessageForEveryCause(t *testing.T) {
	a := AuthenticationFailed(errors.New("unknown identity"))
	b := AuthenticationFailed(errors.New("wrong secret"))
	if a.Message != b.Message {
		t.Errorf("messages differ: %q vs %q", a.Message, b.Message)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	if got := Wrap(nil, ErrCodeInternal, "x"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}

	err := Wrapf(cause, ErrCodeInternal, "load %s", "alice")
	if err.Message != "load alice" {
		t.Errorf("Wrapf().Message = %v, want %v", err.Message, "load alice")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Wrapf() should preserve cause")
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", LockedOut("locked"))

	if !IsLockedOut(wrapped) {
		t.Errorf("IsLockedOut() through fmt wrap = false, want true")
	}
	if IsAuthentication(wrapped) {
		t.Errorf("IsAuthentication() = true for locked-out error")
	}
	if !IsSessionUnusable(SessionExpired()) || !IsSessionUnusable(SessionNotFound()) {
		t.Errorf("IsSessionUnusable() should cover expired and not found")
	}
	if !IsNotFound(NotFound("x")) || !IsValidation(Validation("x")) || !IsInternal(Internal("x")) {
		t.Errorf("basic predicates failed")
	}
	if IsConflict(errors.New("plain")) {
		t.Errorf("IsConflict() = true for plain error")
	}
}

func TestGetCodeAndField(t *testing.T) {
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
	err := fmt.Errorf("ctx: %w", ValidationField("username", "required"))
	if got := GetCode(err); got != ErrCodeValidation {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeValidation)
	}
	if got := GetField(err); got != "username" {
		t.Errorf("GetField() = %v, want username", got)
	}
	if got := GetField(errors.New("plain")); got != "" {
		t.Errorf("GetField(plain) = %v, want empty", got)
	}
}
