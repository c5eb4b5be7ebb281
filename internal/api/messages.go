package api

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Validator is implemented by requests that check their own fields.
type Validator interface {
	Validate() error
}

type Empty struct{}

type User struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	Created    time.Time  `json:"created"`
	BannedDate *time.Time `json:"banned_date,omitempty"`
	Active     bool       `json:"active"`
	Banned     bool       `json:"banned"`
	Admin      bool       `json:"admin"`
}

type Subscription struct {
	Kind    string    `json:"kind"`
	ItemID  int64     `json:"item_id"`
	CanPut  bool      `json:"can_put"`
	Expires time.Time `json:"expires"`
}

type PingResponse struct {
	Status string `json:"status"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type CsrfResponse struct {
	Token string `json:"token"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 200)),
	)
}

type ChangeEmailRequest struct {
	OldEmail string `json:"old_email"`
	NewEmail string `json:"new_email"`
	Password string `json:"password"`
}

func (r ChangeEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldEmail, validation.Required, is.Email),
		validation.Field(&r.NewEmail, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type TokenRequest struct {
	Token string `json:"token"`
}

func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

type RequestPasswordResetRequest struct {
	Email string `json:"email"`
}

func (r RequestPasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 200)),
	)
}

type AvailableItemsRequest struct {
	Kind string `json:"kind"`
}

func (r AvailableItemsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required),
	)
}

type AvailableItemsResponse struct {
	Items []int64 `json:"items"`
}

type CanAccessRequest struct {
	Kind   string `json:"kind"`
	ItemID int64  `json:"item_id"`
}

func (r CanAccessRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required),
	)
}

type CanAccessResponse struct {
	Allowed bool `json:"allowed"`
}

type RegisterUserRequest struct {
	Email string `json:"email"`
}

func (r RegisterUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type RegisterUserResponse struct {
	User    User `json:"user"`
	Created bool `json:"created"`
}

type ListUsersResponse struct {
	Users []User `json:"users"`
}

type SetUserStateRequest struct {
	UserID int64  `json:"user_id"`
	State  string `json:"state"`
}

func (r SetUserStateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.State, validation.Required, validation.In("activate", "inactivate", "ban", "unban")),
	)
}

type SetSubscriptionsRequest struct {
	UserID int64              `json:"user_id"`
	Items  map[string][]int64 `json:"items"`
	Days   int                `json:"days,omitempty"`
}

var errEmptyKind = errors.New("resource kind must not be empty")

func nonEmptyKinds(value interface{}) error {
	m, _ := value.(map[string][]int64)
	for k := range m {
		if k == "" {
			return errEmptyKind
		}
	}
	return nil
}

func (r SetSubscriptionsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Items, validation.By(nonEmptyKinds)),
		validation.Field(&r.Days, validation.Min(0)),
	)
}

type SetSubscriptionsResponse struct {
	Inserted map[string][]int64 `json:"inserted"`
}

type ListSubscriptionsRequest struct {
	UserID int64    `json:"user_id"`
	Kinds  []string `json:"kinds,omitempty"`
}

func (r ListSubscriptionsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
	)
}

type ListSubscriptionsResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
}
