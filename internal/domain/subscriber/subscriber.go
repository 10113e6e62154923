package subscriber

import (
	"errors"
	"strings"
	"time"

	"github.com/subtrack/service-subscription/internal/domain/calendar"
	"github.com/subtrack/service-subscription/internal/platform/domain"
)

var (
	// ErrEmailTaken is returned when a non-deleted subscriber already holds the email.
	ErrEmailTaken = domain.NewConflictError("email already used")

	// ErrCodeTaken is raised by the store when a code unique constraint fires.
	// It never reaches callers: creation regenerates the code and retries.
	ErrCodeTaken = errors.New("subscriber code already taken")
)

// Subscriber is the aggregate root for a person holding subscriptions.
type Subscriber struct {
	id        int64
	firstName string
	lastName  string
	email     string
	code      string
	phone     *string
	createdAt time.Time
	deleted   bool
	deletedAt *time.Time
}

// NewSubscriber creates a subscriber with its immutable code.
func NewSubscriber(firstName, lastName, email string, phone *string, code string, now time.Time) *Subscriber {
	return &Subscriber{
		firstName: strings.TrimSpace(firstName),
		lastName:  strings.TrimSpace(lastName),
		email:     strings.TrimSpace(email),
		code:      code,
		phone:     normalizePhone(phone),
		createdAt: calendar.Date(now),
	}
}

// Reconstruct rebuilds a Subscriber from persistence.
func Reconstruct(id int64, firstName, lastName, email, code string, phone *string, createdAt time.Time, deleted bool, deletedAt *time.Time) *Subscriber {
	return &Subscriber{
		id: id, firstName: firstName, lastName: lastName, email: email,
		code: code, phone: phone, createdAt: createdAt,
		deleted: deleted, deletedAt: deletedAt,
	}
}

// UpdateContact replaces the mutable contact fields. Code and deletion state are untouched.
func (s *Subscriber) UpdateContact(firstName, lastName, email string, phone *string) {
	s.firstName = strings.TrimSpace(firstName)
	s.lastName = strings.TrimSpace(lastName)
	s.email = strings.TrimSpace(email)
	s.phone = normalizePhone(phone)
}

// SoftDelete marks the subscriber deleted at the given instant.
func (s *Subscriber) SoftDelete(at time.Time) error {
	if s.deleted {
		return domain.NewInvalidStateError("SOFT_DELETED", "SOFT_DELETED")
	}
	s.deleted = true
	s.deletedAt = &at
	return nil
}

// AssignCode sets a code on a legacy subscriber that never received one.
func (s *Subscriber) AssignCode(code string) error {
	if s.code != "" {
		return domain.NewInvalidStateError("CODED", "RECODED")
	}
	s.code = code
	return nil
}

// SetID is called by the store once the row has an identity.
func (s *Subscriber) SetID(id int64) { s.id = id }

// FullName joins first and last name.
func (s *Subscriber) FullName() string {
	return s.firstName + " " + s.lastName
}

// SearchText is the haystack used by free-text search.
func (s *Subscriber) SearchText() string {
	return s.firstName + " " + s.lastName + " " + s.email + " " + s.code
}

// MatchesSearch reports whether q is a case-insensitive substring of SearchText.
// A blank query matches everything.
func (s *Subscriber) MatchesSearch(q string) bool {
	if strings.TrimSpace(q) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.SearchText()), strings.ToLower(q))
}

// Getters.
func (s *Subscriber) ID() int64             { return s.id }
func (s *Subscriber) FirstName() string     { return s.firstName }
func (s *Subscriber) LastName() string      { return s.lastName }
func (s *Subscriber) Email() string         { return s.email }
func (s *Subscriber) Code() string          { return s.code }
func (s *Subscriber) Phone() *string        { return s.phone }
func (s *Subscriber) CreatedAt() time.Time  { return s.createdAt }
func (s *Subscriber) Deleted() bool         { return s.deleted }
func (s *Subscriber) DeletedAt() *time.Time { return s.deletedAt }

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	p := strings.TrimSpace(*phone)
	if p == "" {
		return nil
	}
	return &p
}
