// Package directory serves user records. Reads are deterministic and derived
// from the requested id; the only state is the creation counter.
package directory

import (
	"fmt"
	"sync/atomic"

	"github.com/gridgate/gridgate/internal/apperrors"
)

// ErrUserNotFound is returned for the reserved id 0. The message text is part
// of the cross-protocol contract.
var ErrUserNotFound = apperrors.WithMessage(apperrors.CodeNotFound, "User not found")

// Credential stub. A fixed token is returned regardless of outcome; real
// token issuance is out of scope.
const (
	stubUsername = "admin"
	stubPassword = "123456"

	// PlaceholderToken is returned by VerifyCredentials for every input.
	PlaceholderToken = "sample-jwt-token"
)

// User is a user record.
type User struct {
	Id    int32  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int32  `json:"age"`
}

// Directory hands out user records. Safe for concurrent use.
type Directory struct {
	nextID atomic.Int32
}

// New returns a directory whose first created user gets id 1.
func New() *Directory {
	return &Directory{}
}

// Get returns the deterministic profile labeled with id. Id 0 is reserved and
// always reports not found.
func (d *Directory) Get(id int32) (User, error) {
	if id == 0 {
		return User{}, ErrUserNotFound
	}
	return User{
		Id:    id,
		Name:  "John Doe",
		Email: "john@example.com",
		Age:   30,
	}, nil
}

// Create assigns the next id atomically; concurrent creates never collide.
func (d *Directory) Create(name, email string, age int32) User {
	return User{
		Id:    d.nextID.Add(1),
		Name:  name,
		Email: email,
		Age:   age,
	}
}

// Update returns the record as it would look after the update. Id 0 reports
// not found.
func (d *Directory) Update(id int32, name, email string, age int32) (User, error) {
	if id == 0 {
		return User{}, ErrUserNotFound
	}
	return User{
		Id:    id,
		Name:  name,
		Email: email,
		Age:   age,
	}, nil
}

// Delete acknowledges deletion of id. Id 0 reports not found.
func (d *Directory) Delete(id int32) (string, error) {
	if id == 0 {
		return "", ErrUserNotFound
	}
	return fmt.Sprintf("User %d deleted successfully", id), nil
}

// VerifyCredentials checks the hardcoded stub credentials. The placeholder
// token is returned for every input, authenticated or not.
func (d *Directory) VerifyCredentials(username, password string) (bool, string) {
	authenticated := username == stubUsername && password == stubPassword
	return authenticated, PlaceholderToken
}
