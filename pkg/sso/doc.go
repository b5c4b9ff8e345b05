// Package sso wraps the authentication endpoints of the SSO backend.
//
// # Overview
//
// AuthService is a thin typed binding of the /auth endpoints. Session layers
// the client-side login flows on top of it: successful logins and SSO token
// exchanges write tokens, the SSO token, the device id and the user record
// into a session.Store; logouts clear the store even when the server call
// fails.
//
// GoogleFlow runs the browser redirect login from a terminal by listening
// for the provider callback on a loopback port.
//
// # Usage Example
//
//	auth := sso.NewAuthService(apiClient)
//	sess := sso.NewSession(sso.SessionConfig{
//		Auth:      auth,
//		Store:     store,
//		DeviceIDs: deviceIDs,
//		ClientID:  "ssoadmin",
//	})
//
//	resp, err := sess.LoginWithEmail(ctx, "admin@example.com", password)
//	if err != nil {
//		return api.ParseError(err)
//	}
//	fmt.Println("logged in as", resp.User.Name)
//
// Google login:
//
//	flow := sso.NewGoogleFlow(sess, sso.GoogleFlowConfig{OpenBrowser: open})
//	resp, err := flow.Login(ctx)
package sso
