// Package oauth manages the OAuth2 token lifecycle for connectors.
//
// A Manager is bound to one ProviderProfile and holds no token state: every
// method is a function from its arguments to a new Credentials value or an
// error. Callers own the Credentials they receive and decide when to refresh
// them.
//
// The authorization code flow looks like:
//
//	mgr, _ := oauth.NewManager(profile)
//	req, _ := mgr.BuildAuthorizationURL(clientID, redirectURI, "")
//	// redirect the user agent to req.URL, keep req.State and req.PKCE
//	code, _ := oauth.ParseCallback(callbackURL, req.State)
//	creds, _ := mgr.ExchangeCode(ctx, oauth.ExchangeRequest{
//		Code:         code,
//		ClientID:     clientID,
//		ClientSecret: clientSecret,
//		RedirectURI:  redirectURI,
//		CodeVerifier: req.PKCE.Verifier(),
//	})
//
// Token endpoint calls are made directly rather than through
// oauth2.Config.Exchange so that provider-specific response fields survive
// into Credentials.ProviderFields.
package oauth
