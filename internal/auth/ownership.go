package auth

import "errors"

// ErrForbidden indicates an authenticated actor that does not own the
// resource it is trying to mutate.
var ErrForbidden = errors.New("actor does not own resource")

// Owned is implemented by resources guarded by the ownership rule.
type Owned interface {
	OwnerID() string
}

// RequireOwner enforces the ownership rule applied to every resource
// mutation: the acting identity must match the resource's creator. All
// handlers share this comparison so the check cannot drift between entities.
func RequireOwner(resource Owned, actorID string) error {
	if actorID == "" || resource.OwnerID() != actorID {
		return ErrForbidden
	}
	return nil
}
