package domain

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User User
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id UserID, username string) Member {
	if username == "" {
		username = DefaultUsername
	}
	return Member{User: User{ID: id, Username: username}}
}
