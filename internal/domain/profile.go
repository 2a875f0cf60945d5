package domain

import "strings"

// PersonalInfo is the user profile. Singleton per identity; overwritten
// wholesale on every profile save.
type PersonalInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"` // data URI
}

// DefaultPersonalInfo seeds a profile from the identity email: the name is
// the local part, everything else starts empty.
func DefaultPersonalInfo(identity string) PersonalInfo {
	name := identity
	if i := strings.IndexByte(identity, '@'); i > 0 {
		name = identity[:i]
	}
	return PersonalInfo{Name: name, Email: identity}
}

// Snapshot is the persisted per-identity state: the profile plus the ordered
// application list, newest first.
type Snapshot struct {
	PersonalInfo PersonalInfo        `json:"personalInfo"`
	Applications []ApplicationRecord `json:"applications"`
}

func DefaultSnapshot(identity string) Snapshot {
	return Snapshot{PersonalInfo: DefaultPersonalInfo(identity)}
}
