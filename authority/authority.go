// authority/authority.go
package authority

import "context"

// Checker is the remote authority that ultimately approves or denies a
// permission code for an identity. It may fail with a transport or server
// error; the decision engine resolves any such failure to denial.
type Checker interface {
	CheckPermission(ctx context.Context, identityID string, code string) (bool, error)
}
