package flows

// Deps groups flow dependency sets. The root manager builds this once and
// delegates lifecycle methods to the matching flow implementation.
type Deps struct {
	Login   LoginDeps
	Verify  VerifyDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
}
