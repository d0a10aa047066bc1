package push

import "github.com/freshfold/support-chat/internal/model"

// TokensFor collects the device tokens of accounts that may receive a
// push meant for app. A tagged token only ever matches its own app; an
// untagged legacy token belongs to the app of its owner's role.
func TokensFor(app model.AppClass, accounts ...model.Account) []string {
	var out []string
	for _, a := range accounts {
		owner := model.AppClassFor(a.Role)
		for _, dt := range a.DeviceTokens {
			tag := dt.App
			if tag == model.AppUntagged {
				tag = owner
			}
			if tag == app {
				out = append(out, dt.Token)
			}
		}
	}
	return Dedupe(out)
}
