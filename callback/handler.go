package callback

import (
	"fmt"
	"net/http"

	"github.com/anoano/portal/authapi"
	"github.com/anoano/portal/flow"
	"github.com/anoano/portal/sdk/cookies"
)

// Handler creates the handler for the portal's registered redirect URI.
//
// The SuccessResponseFunc is used to create a response when the code
// exchange succeeded, the LogoutResponseFunc when a logout completed, and
// the ErrorResponseFunc for terminal errors.  Any nil func falls back to
// the package defaults.  Success and logout responses redirect, which
// strips the query string from the browser's URL; a reload therefore
// re-enters parameterless and a re-posted code is absorbed by the
// orchestrator's idempotency set.
func Handler(orch *flow.Orchestrator, sFn SuccessResponseFunc, eFn ErrorResponseFunc, lFn LogoutResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Handler"
	if orch == nil {
		return nil, fmt.Errorf("%s: orchestrator is nil: %w", op, authapi.ErrNilParameter)
	}
	if sFn == nil {
		sFn = DefaultSuccessResponse
	}
	if lFn == nil {
		lFn = DefaultLogoutResponse
	}
	if eFn == nil {
		eFn = ErrorResponse(orch.LoginURL(), orch.LoginURL())
	}
	return func(w http.ResponseWriter, req *http.Request) {
		outcome := orch.HandleCallback(req.Context(), req.URL.Query())
		switch outcome.Disposition {
		case flow.DispositionLoggedIn:
			sFn(outcome, w, req)
		case flow.DispositionLoggedOut:
			if outcome.WipeCookies {
				cookies.ExpireAll(w, req)
			}
			lFn(outcome, w, req)
		case flow.DispositionDuplicate:
			// the first invocation did the work; send the duplicate on to
			// the landing route, where the guards decide what it sees
			http.Redirect(w, req, orch.LandingURL(), http.StatusFound)
		default:
			eFn(outcome.Message, w, req)
		}
	}, nil
}
