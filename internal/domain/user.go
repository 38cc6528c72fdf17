package domain

import (
	"maps"
	"strconv"
)

// UserContext is the provider-agnostic set of attributes a flag is evaluated
// against. It is built once and never mutated; every adapter translates it
// into its vendor's native context type.
type UserContext struct {
	identifier string
	country    string
	email      string
	tenantID   int
	role       string
	custom     map[string]string
}

// UserOption configures a UserContext at construction time.
type UserOption func(*UserContext)

func WithCountry(country string) UserOption {
	return func(u *UserContext) { u.country = country }
}

func WithEmail(email string) UserOption {
	return func(u *UserContext) { u.email = email }
}

func WithTenantID(tenantID int) UserOption {
	return func(u *UserContext) { u.tenantID = tenantID }
}

func WithRole(role string) UserOption {
	return func(u *UserContext) { u.role = role }
}

// WithCustomAttribute adds a free-form attribute. Every adapter lets it
// replace an attribute it would otherwise send under the same name (for
// example "country" or "tenantId"). Typed vendor user fields such as the
// key, identifier or email field are never overridden.
func WithCustomAttribute(key, value string) UserOption {
	return func(u *UserContext) {
		if key == "" {
			return
		}
		u.custom[key] = value
	}
}

// NewUserContext builds an immutable user context.
func NewUserContext(identifier string, opts ...UserOption) UserContext {
	u := UserContext{
		identifier: identifier,
		custom:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func (u UserContext) Identifier() string { return u.identifier }
func (u UserContext) Country() string    { return u.country }
func (u UserContext) Email() string      { return u.email }
func (u UserContext) TenantID() int      { return u.tenantID }
func (u UserContext) Role() string       { return u.role }

// TenantIDString returns the tenant as text for vendors whose custom
// attributes only accept strings.
func (u UserContext) TenantIDString() string {
	return strconv.Itoa(u.tenantID)
}

// Custom returns a copy of the custom attributes.
func (u UserContext) Custom() map[string]string {
	out := make(map[string]string, len(u.custom))
	maps.Copy(out, u.custom)
	return out
}

// CustomAttribute returns a single custom attribute.
func (u UserContext) CustomAttribute(key string) (string, bool) {
	v, ok := u.custom[key]
	return v, ok
}
