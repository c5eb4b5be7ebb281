package grpc

import (
	"github.com/dmitrijs2005/cropdb/internal/api"
	"github.com/dmitrijs2005/cropdb/internal/server/guard"
)

// methodPolicies maps every full method name to the checks that protect it.
// Methods missing from the table are refused.
var methodPolicies = map[string]guard.Policy{
	api.FullMethod(api.MethodPing):                 guard.Public,
	api.FullMethod(api.MethodLogin):                guard.Public,
	api.FullMethod(api.MethodConfirmEmail):         guard.Public,
	api.FullMethod(api.MethodRequestPasswordReset): guard.Public,
	api.FullMethod(api.MethodResetPassword):        guard.Public,

	api.FullMethod(api.MethodWhoami):         guard.Login,
	api.FullMethod(api.MethodCsrf):           guard.Login,
	api.FullMethod(api.MethodAvailableItems): guard.Login,
	api.FullMethod(api.MethodCanAccess):      guard.Login,

	api.FullMethod(api.MethodLogout):         guard.LoginCSRF,
	api.FullMethod(api.MethodChangePassword): guard.LoginCSRF,
	api.FullMethod(api.MethodChangeEmail):    guard.LoginCSRF,

	api.FullMethod(api.MethodListUsers):         guard.Admin,
	api.FullMethod(api.MethodListSubscriptions): guard.Admin,

	api.FullMethod(api.MethodRegisterUser):     guard.AdminCSRF,
	api.FullMethod(api.MethodSetUserState):     guard.AdminCSRF,
	api.FullMethod(api.MethodSetSubscriptions): guard.AdminCSRF,
}

func policyFor(fullMethod string) (guard.Policy, bool) {
	p, ok := methodPolicies[fullMethod]
	return p, ok
}
