package pennant

import (
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/poller"
	"github.com/OrlandoBitencourt/pennant/internal/provider"
	"github.com/OrlandoBitencourt/pennant/internal/report"
)

type (
	// User is the immutable context every provider evaluates against.
	User = domain.UserContext

	UserOption = domain.UserOption

	// Result is one provider's answer in one iteration.
	Result = domain.EvaluationResult

	// FlagProvider is implemented by every vendor adapter.
	FlagProvider = provider.FlagProvider

	// Registration names a provider, its credential and its factory.
	Registration = provider.Registration

	// Reporter receives the results of each iteration.
	Reporter = report.Reporter

	// Stats is a snapshot of the polling loop.
	Stats = poller.Stats
)

// NewUser builds a User.
//
// Example:
//
//	user := pennant.NewUser("##SOME-USER-IDENTIFIER##",
//	    pennant.UserEmail("jane@example.com"),
//	    pennant.UserCountry("Finland"),
//	    pennant.UserTenantID(50001),
//	    pennant.UserRole("PolicyAdmin"),
//	)
func NewUser(identifier string, opts ...UserOption) User {
	return domain.NewUserContext(identifier, opts...)
}

func UserCountry(country string) UserOption { return domain.WithCountry(country) }
func UserEmail(email string) UserOption     { return domain.WithEmail(email) }
func UserTenantID(id int) UserOption        { return domain.WithTenantID(id) }
func UserRole(role string) UserOption       { return domain.WithRole(role) }

// UserAttribute adds a custom attribute forwarded to every vendor.
func UserAttribute(key, value string) UserOption {
	return domain.WithCustomAttribute(key, value)
}
